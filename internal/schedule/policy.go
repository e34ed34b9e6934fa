package schedule

import (
	"time"
)

// Rejection reasons, in priority order. When several constraints are violated
// at once the first one in this order is reported.
const (
	ReasonLocked        = "Observation is locked and can no longer be submitted."
	ReasonTooOld        = "Observation time is too far in the past."
	ReasonTooFuture     = "Observation time is too far in the future."
	ReasonOutsideWindow = "Outside allowed submission window."
)

// Result is the outcome of validating a submission against a schedule.
// Late and Locked describe the state at time of capture; they are stored on
// the record and never recomputed, even if the upload happens much later.
type Result struct {
	OK              bool
	Late            bool
	Locked          bool
	Reason          string
	NormalizedLocal time.Time
}

// Round truncates seconds and rounds the minute-of-day to the nearest
// multiple of incrementMinutes, ties toward the next slot. Rolls over to the
// next day when rounding past midnight.
func Round(t time.Time, incrementMinutes int) time.Time {
	if incrementMinutes < 1 {
		incrementMinutes = 1
	}

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	minuteOfDay := t.Hour()*60 + t.Minute()
	rounded := ((minuteOfDay + incrementMinutes/2) / incrementMinutes) * incrementMinutes

	return day.Add(time.Duration(rounded) * time.Minute)
}

// LocalToUTC converts a normalized station-local time to the UTC instant
// persisted as part of the record key.
func LocalToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Validate decides whether an observation may be submitted now. Pure and
// deterministic: nowUTC is the only clock input, loc is the station's
// timezone, requested is an optional explicit station-local time.
func Validate(mode Mode, loc *time.Location, nowUTC time.Time, requested *time.Time) Result {
	now := nowUTC.In(loc)

	switch m := mode.(type) {
	case FixedLocal:
		return validateFixedLocal(m, loc, now, requested)
	case WindowedOnly:
		return validateWindowed(m, loc, now, requested)
	default:
		// Mode is sealed; this is unreachable for any compiled Spec.
		return Result{Reason: "unknown schedule mode"}
	}
}

func validateFixedLocal(m FixedLocal, loc *time.Location, now time.Time, requested *time.Time) Result {
	var anchor time.Time
	if requested != nil {
		anchor = requested.In(loc)
	} else {
		anchor = nearestSlot(m.Slots, loc, now)
	}
	norm := Round(anchor, m.RoundingIncrement)

	windowOpen := norm.Add(-time.Duration(m.WindowBefore) * time.Minute)
	nominalClose := norm.Add(time.Duration(m.WindowAfter) * time.Minute)
	windowClose := nominalClose.Add(time.Duration(m.GraceLate) * time.Minute)

	res := Result{
		NormalizedLocal: norm,
		Late:            now.After(nominalClose),
		Locked:          m.LockAfter > 0 && now.After(norm.Add(time.Duration(m.LockAfter)*time.Minute)),
	}

	inside := !now.Before(windowOpen) && !now.After(windowClose)
	finish(&res, norm, now, inside, m.BackfillDays, m.AllowFuture)
	return res
}

func validateWindowed(m WindowedOnly, loc *time.Location, now time.Time, requested *time.Time) Result {
	anchor := now
	if requested != nil {
		anchor = requested.In(loc)
	}
	norm := Round(anchor, m.RoundingIncrement)

	day := time.Date(norm.Year(), norm.Month(), norm.Day(), 0, 0, 0, 0, loc)
	windowOpen := day.Add(time.Duration(m.WindowStart) * time.Minute)
	nominalClose := day.Add(time.Duration(m.WindowEnd) * time.Minute)

	// A start later than the end means the window crosses local midnight.
	if m.WindowEnd < m.WindowStart {
		normTod := TimeOfDay(norm.Hour()*60 + norm.Minute())
		if normTod >= m.WindowStart {
			nominalClose = nominalClose.AddDate(0, 0, 1)
		} else {
			windowOpen = windowOpen.AddDate(0, 0, -1)
		}
	}
	windowClose := nominalClose.Add(time.Duration(m.GraceLate) * time.Minute)

	res := Result{
		NormalizedLocal: norm,
		Late:            norm.After(nominalClose),
		Locked:          m.LockAfter > 0 && now.After(norm.Add(time.Duration(m.LockAfter)*time.Minute)),
	}

	inside := !norm.Before(windowOpen) && !norm.After(windowClose)
	finish(&res, norm, now, inside, m.BackfillDays, m.AllowFuture)
	return res
}

// finish applies the backfill and future bounds shared by both modes and
// resolves the first violated constraint in priority order.
func finish(res *Result, norm, now time.Time, insideWindow bool, backfillDays, allowFuture int) {
	// Both bounds are opt-in: zero disables them. A future bound of zero
	// would otherwise reject every pre-slot submission inside windowBefore.
	tooOld := backfillDays > 0 && norm.Before(now.AddDate(0, 0, -backfillDays))
	tooFuture := allowFuture > 0 && norm.After(now.Add(time.Duration(allowFuture)*time.Minute))

	switch {
	case res.Locked:
		res.Reason = ReasonLocked
	case tooOld:
		res.Reason = ReasonTooOld
	case tooFuture:
		res.Reason = ReasonTooFuture
	case !insideWindow:
		res.Reason = ReasonOutsideWindow
	default:
		res.OK = true
	}
}

// nearestSlot picks the configured daily slot closest to now by absolute
// difference, searching the previous, current and next local calendar day so
// slots near midnight resolve to the right date.
func nearestSlot(slots []TimeOfDay, loc *time.Location, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var best time.Time
	bestDiff := time.Duration(1<<63 - 1)
	for dd := -1; dd <= 1; dd++ {
		base := day.AddDate(0, 0, dd)
		for _, slot := range slots {
			candidate := base.Add(time.Duration(slot) * time.Minute)
			diff := now.Sub(candidate)
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				bestDiff = diff
				best = candidate
			}
		}
	}
	return best
}
