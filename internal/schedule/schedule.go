package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a local clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Mode is the sealed set of schedule policies. Exactly two implementations
// exist: FixedLocal and WindowedOnly.
type Mode interface {
	Tag() string
	mode()
}

// FixedLocal allows submission around configured daily slots. All durations
// are minutes; BackfillDays is days.
type FixedLocal struct {
	Slots             []TimeOfDay
	WindowBefore      int
	WindowAfter       int
	GraceLate         int
	RoundingIncrement int
	BackfillDays      int
	AllowFuture       int
	LockAfter         int
}

func (FixedLocal) Tag() string { return "fixed_local" }
func (FixedLocal) mode()       {}

// WindowedOnly allows submission inside a single daily window. A
// WindowStart later than WindowEnd means the window crosses local midnight.
type WindowedOnly struct {
	WindowStart       TimeOfDay
	WindowEnd         TimeOfDay
	GraceLate         int
	RoundingIncrement int
	BackfillDays      int
	AllowFuture       int
	LockAfter         int
}

func (WindowedOnly) Tag() string { return "windowed" }
func (WindowedOnly) mode()       {}

// Spec is the serializable shape of a schedule policy, as it appears in the
// YAML config (tenant default) and in station reference data pulled from the
// tenant server.
type Spec struct {
	Mode              string   `yaml:"mode" json:"mode"` // "fixed_local" or "windowed"
	Slots             []string `yaml:"slots" json:"slots,omitempty"`
	WindowStart       string   `yaml:"window_start" json:"window_start,omitempty"`
	WindowEnd         string   `yaml:"window_end" json:"window_end,omitempty"`
	WindowBefore      int      `yaml:"window_before" json:"window_before"`
	WindowAfter       int      `yaml:"window_after" json:"window_after"`
	GraceLate         int      `yaml:"grace_late" json:"grace_late"`
	RoundingIncrement int      `yaml:"rounding_increment" json:"rounding_increment"`
	BackfillDays      int      `yaml:"backfill_days" json:"backfill_days"`
	AllowFuture       int      `yaml:"allow_future" json:"allow_future"`
	LockAfter         int      `yaml:"lock_after" json:"lock_after"`
}

// Compile converts the serialized spec into its policy mode.
func (s Spec) Compile() (Mode, error) {
	inc := s.RoundingIncrement
	if inc < 1 {
		inc = 1
	}

	switch s.Mode {
	case "fixed_local":
		if len(s.Slots) == 0 {
			return nil, fmt.Errorf("fixed_local schedule requires at least one slot")
		}
		slots := make([]TimeOfDay, 0, len(s.Slots))
		for _, raw := range s.Slots {
			tod, err := ParseTimeOfDay(raw)
			if err != nil {
				return nil, err
			}
			slots = append(slots, tod)
		}
		return FixedLocal{
			Slots:             slots,
			WindowBefore:      s.WindowBefore,
			WindowAfter:       s.WindowAfter,
			GraceLate:         s.GraceLate,
			RoundingIncrement: inc,
			BackfillDays:      s.BackfillDays,
			AllowFuture:       s.AllowFuture,
			LockAfter:         s.LockAfter,
		}, nil
	case "windowed":
		start, err := ParseTimeOfDay(s.WindowStart)
		if err != nil {
			return nil, fmt.Errorf("window_start: %w", err)
		}
		end, err := ParseTimeOfDay(s.WindowEnd)
		if err != nil {
			return nil, fmt.Errorf("window_end: %w", err)
		}
		return WindowedOnly{
			WindowStart:       start,
			WindowEnd:         end,
			GraceLate:         s.GraceLate,
			RoundingIncrement: inc,
			BackfillDays:      s.BackfillDays,
			AllowFuture:       s.AllowFuture,
			LockAfter:         s.LockAfter,
		}, nil
	default:
		return nil, fmt.Errorf("unknown schedule mode: %q", s.Mode)
	}
}
