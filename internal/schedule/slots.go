package schedule

import "time"

// FreeSlots returns the gaps of [dayStart, dayEnd) not covered by busy, in chronological order.
//
// busy may be unsorted, overlapping, or contain empty/inverted intervals (which occupy nothing).
// The cursor only moves forward, so an interval starting before the cursor never reopens time
// that an earlier interval already covered.
func FreeSlots(busy []Interval, dayStart, dayEnd time.Time) []Interval {
	if !dayEnd.After(dayStart) {
		return nil
	}

	sorted := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	sortIntervals(sorted)

	var slots []Interval
	cursor := dayStart
	for _, iv := range sorted {
		if !iv.Start.Before(dayEnd) {
			break
		}
		if iv.Start.After(cursor) {
			slots = append(slots, Interval{Start: cursor, End: iv.Start})
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if cursor.Before(dayEnd) {
		slots = append(slots, Interval{Start: cursor, End: dayEnd})
	}
	return slots
}

// firstFit returns the earliest slot whose length is at least d.
func firstFit(slots []Interval, d time.Duration) (Interval, bool) {
	for _, s := range slots {
		if s.Len() >= d {
			return s, true
		}
	}
	return Interval{}, false
}
