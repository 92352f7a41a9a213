package schedule

import "sort"

// SortBatch returns a copy of batch in placement order:
// earliest effective deadline first, then higher importance, then longer duration.
// Remaining ties keep input order.
func SortBatch(batch []Task) []Task {
	out := append([]Task(nil), batch...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		da, db := a.EffectiveDeadline(), b.EffectiveDeadline()
		if !da.Equal(db) {
			return da.Before(db)
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.Duration() > b.Duration()
	})
	return out
}
