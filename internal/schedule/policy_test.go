package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nairobi = time.FixedZone("EAT", 3*60*60)

func fixedMorningEvening() FixedLocal {
	return FixedLocal{
		Slots:             []TimeOfDay{6 * 60, 18 * 60},
		WindowBefore:      30,
		WindowAfter:       30,
		GraceLate:         60,
		RoundingIncrement: 15,
	}
}

func localTime(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, nairobi)
}

func TestValidateFixedLocal(t *testing.T) {
	tests := []struct {
		name       string
		mode       FixedLocal
		now        time.Time
		requested  *time.Time
		wantOK     bool
		wantLate   bool
		wantLocked bool
		wantReason string
		wantNorm   time.Time
	}{
		{
			name:     "inside window shortly after slot",
			mode:     fixedMorningEvening(),
			now:      localTime(6, 10),
			wantOK:   true,
			wantNorm: localTime(6, 0),
		},
		{
			name:     "inside grace period is accepted but late",
			mode:     fixedMorningEvening(),
			now:      localTime(6, 45),
			wantOK:   true,
			wantLate: true,
			wantNorm: localTime(6, 0),
		},
		{
			name:       "past grace period",
			mode:       fixedMorningEvening(),
			now:        localTime(7, 35),
			wantLate:   true,
			wantReason: ReasonOutsideWindow,
			wantNorm:   localTime(6, 0),
		},
		{
			name: "locked wins over window rejection",
			mode: func() FixedLocal {
				m := fixedMorningEvening()
				m.LockAfter = 60
				return m
			}(),
			now:        localTime(7, 35),
			wantLate:   true,
			wantLocked: true,
			wantReason: ReasonLocked,
			wantNorm:   localTime(6, 0),
		},
		{
			name:      "explicit requested time rounds to the slot",
			mode:      fixedMorningEvening(),
			now:       localTime(6, 10),
			requested: timePtr(time.Date(2026, 3, 10, 5, 58, 12, 0, nairobi)),
			wantOK:    true,
			wantNorm:  localTime(6, 0),
		},
		{
			name: "backfill bound beats window rejection",
			mode: func() FixedLocal {
				m := fixedMorningEvening()
				m.BackfillDays = 1
				return m
			}(),
			now:        localTime(6, 10),
			requested:  timePtr(time.Date(2026, 3, 7, 6, 0, 0, 0, nairobi)),
			wantLate:   true,
			wantReason: ReasonTooOld,
			wantNorm:   time.Date(2026, 3, 7, 6, 0, 0, 0, nairobi),
		},
		{
			name: "requested time beyond the future bound",
			mode: func() FixedLocal {
				m := fixedMorningEvening()
				m.AllowFuture = 120
				return m
			}(),
			now:        localTime(6, 10),
			requested:  timePtr(time.Date(2026, 3, 11, 6, 0, 0, 0, nairobi)),
			wantReason: ReasonTooFuture,
			wantNorm:   time.Date(2026, 3, 11, 6, 0, 0, 0, nairobi),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.mode, nairobi, tt.now.UTC(), tt.requested)

			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, tt.wantLate, res.Late)
			assert.Equal(t, tt.wantLocked, res.Locked)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.True(t, tt.wantNorm.Equal(res.NormalizedLocal),
				"normalized = %v, want %v", res.NormalizedLocal, tt.wantNorm)
		})
	}
}

func TestValidateFixedLocalWholeWindow(t *testing.T) {
	mode := fixedMorningEvening()
	slot := localTime(6, 0)

	// Every minute of [slot − windowBefore, slot + windowAfter + grace] must
	// be accepted, late exactly when past slot + windowAfter.
	for offset := -mode.WindowBefore; offset <= mode.WindowAfter+mode.GraceLate; offset++ {
		now := slot.Add(time.Duration(offset) * time.Minute)
		res := Validate(mode, nairobi, now.UTC(), nil)

		require.True(t, res.OK, "offset %d min should be accepted: %+v", offset, res)
		assert.Equal(t, offset > mode.WindowAfter, res.Late, "offset %d min", offset)
	}
}

func TestValidateFixedLocalSlotNearMidnight(t *testing.T) {
	mode := FixedLocal{
		Slots:             []TimeOfDay{23*60 + 45},
		WindowBefore:      30,
		WindowAfter:       30,
		GraceLate:         60,
		RoundingIncrement: 15,
	}

	// Five past midnight resolves to yesterday's 23:45 slot.
	now := time.Date(2026, 3, 11, 0, 5, 0, 0, nairobi)
	res := Validate(mode, nairobi, now.UTC(), nil)

	require.True(t, res.OK)
	assert.False(t, res.Late)
	assert.True(t, time.Date(2026, 3, 10, 23, 45, 0, 0, nairobi).Equal(res.NormalizedLocal))
}

func TestValidateWindowed(t *testing.T) {
	crossing := WindowedOnly{
		WindowStart:       18 * 60,
		WindowEnd:         6 * 60,
		GraceLate:         30,
		RoundingIncrement: 5,
	}

	tests := []struct {
		name       string
		mode       WindowedOnly
		now        time.Time
		wantOK     bool
		wantLate   bool
		wantReason string
	}{
		{
			name:   "inside window before midnight",
			mode:   crossing,
			now:    time.Date(2026, 3, 10, 23, 0, 0, 0, nairobi),
			wantOK: true,
		},
		{
			name:   "inside window after midnight",
			mode:   crossing,
			now:    time.Date(2026, 3, 11, 5, 30, 0, 0, nairobi),
			wantOK: true,
		},
		{
			name:       "midday is outside the overnight window",
			mode:       crossing,
			now:        time.Date(2026, 3, 10, 12, 0, 0, 0, nairobi),
			wantReason: ReasonOutsideWindow,
		},
		{
			name:     "inside grace after window end",
			mode:     crossing,
			now:      time.Date(2026, 3, 11, 6, 15, 0, 0, nairobi),
			wantOK:   true,
			wantLate: true,
		},
		{
			name: "plain daytime window accepts",
			mode: WindowedOnly{
				WindowStart:       9 * 60,
				WindowEnd:         17 * 60,
				RoundingIncrement: 10,
			},
			now:    time.Date(2026, 3, 10, 10, 2, 0, 0, nairobi),
			wantOK: true,
		},
		{
			name: "plain daytime window rejects evening",
			mode: WindowedOnly{
				WindowStart:       9 * 60,
				WindowEnd:         17 * 60,
				RoundingIncrement: 10,
			},
			now:        time.Date(2026, 3, 10, 19, 0, 0, 0, nairobi),
			wantLate:   true,
			wantReason: ReasonOutsideWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.mode, nairobi, tt.now.UTC(), nil)

			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, tt.wantLate, res.Late)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		inc  int
		want time.Time
	}{
		{
			name: "rounds down within half increment",
			in:   localTime(6, 7),
			inc:  15,
			want: localTime(6, 0),
		},
		{
			name: "rounds up past half increment",
			in:   localTime(6, 10),
			inc:  15,
			want: localTime(6, 15),
		},
		{
			name: "ties round toward the next slot",
			in:   localTime(6, 5),
			inc:  10,
			want: localTime(6, 10),
		},
		{
			name: "seconds are truncated",
			in:   time.Date(2026, 3, 10, 6, 7, 59, 500, nairobi),
			inc:  15,
			want: localTime(6, 0),
		},
		{
			name: "rolls over local midnight",
			in:   localTime(23, 59),
			inc:  15,
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, nairobi),
		},
		{
			name: "increment below one is clamped",
			in:   time.Date(2026, 3, 10, 6, 7, 33, 0, nairobi),
			inc:  0,
			want: localTime(6, 7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(tt.in, tt.inc)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			assert.Zero(t, got.Second())
			assert.Zero(t, got.Nanosecond())
		})
	}
}

func TestRoundMultipleProperty(t *testing.T) {
	for _, inc := range []int{1, 5, 10, 15, 30, 60} {
		for minute := 0; minute < 24*60; minute += 7 {
			in := time.Date(2026, 3, 10, 0, 0, 17, 0, nairobi).Add(time.Duration(minute) * time.Minute)
			got := Round(in, inc)

			minuteOfDay := got.Hour()*60 + got.Minute()
			require.Zero(t, minuteOfDay%inc, "round(%v, %d) = %v", in, inc, got)
			require.Zero(t, got.Second())
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("06:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(390), tod)
	assert.Equal(t, "06:30", tod.String())

	for _, bad := range []string{"", "25:00", "06:99", "630", "aa:bb"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestSpecCompile(t *testing.T) {
	fixed, err := Spec{
		Mode:              "fixed_local",
		Slots:             []string{"06:00", "18:00"},
		WindowBefore:      30,
		WindowAfter:       30,
		GraceLate:         60,
		RoundingIncrement: 15,
	}.Compile()
	require.NoError(t, err)
	assert.Equal(t, "fixed_local", fixed.Tag())

	windowed, err := Spec{
		Mode:        "windowed",
		WindowStart: "18:00",
		WindowEnd:   "06:00",
	}.Compile()
	require.NoError(t, err)
	assert.Equal(t, "windowed", windowed.Tag())

	_, err = Spec{Mode: "fixed_local"}.Compile()
	assert.Error(t, err)

	_, err = Spec{Mode: "lunar"}.Compile()
	assert.Error(t, err)
}

func timePtr(t time.Time) *time.Time { return &t }
