package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Touching endpoints do not count: a slot ending
// exactly when a booking starts is still free.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func OverlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// GenerateSlots returns candidate start times stepping from windowStart by
// step, keeping only starts whose meeting of length duration fits entirely
// inside [windowStart, windowEnd]. A slot that would spill past the window end
// is dropped, not clipped. Output is ascending and duplicate-free.
func GenerateSlots(windowStart, windowEnd time.Time, step, duration time.Duration) []time.Time {
	if step <= 0 || duration <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		slots = append(slots, t)
	}
	return slots
}

// FilterAvailable keeps the candidates whose occupied interval
// [t, t+duration) overlaps none of the busy intervals, preserving order.
func FilterAvailable(candidates []time.Time, duration time.Duration, busy []Interval) []time.Time {
	if duration <= 0 {
		return nil
	}
	var out []time.Time
	for _, t := range candidates {
		if !OverlapsAny(t, t.Add(duration), busy) {
			out = append(out, t)
		}
	}
	return out
}
