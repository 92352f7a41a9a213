package schedule

import (
	"sort"
	"time"
)

// Importance bounds. Higher is more important.
const (
	ImportanceLow     = 1
	ImportanceNormal  = 2
	ImportanceHigh    = 3
	DefaultImportance = ImportanceNormal
)

// Task is the scheduler's view of a persisted task.
//
// Due is optional; the zero value means "use End".
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string

	Start time.Time
	End   time.Time
	Due   time.Time

	Importance   int
	AutoSchedule bool
	Completed    bool
}

// Duration is End - Start. It is never altered by placement.
func (t Task) Duration() time.Duration { return t.End.Sub(t.Start) }

// EffectiveDeadline returns Due if set, else End.
func (t Task) EffectiveDeadline() time.Time {
	if !t.Due.IsZero() {
		return t.Due
	}
	return t.End
}

// Busy returns the occupied interval of a persisted task.
func (t Task) Busy() Interval { return Interval{Start: t.Start, End: t.End} }

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Len() time.Duration { return iv.End.Sub(iv.Start) }

// Empty reports zero-length or inverted intervals.
func (iv Interval) Empty() bool { return !iv.End.After(iv.Start) }

// Overlaps reports whether the two half-open intervals share any instant.
func (iv Interval) Overlaps(o Interval) bool {
	if iv.Empty() || o.Empty() {
		return false
	}
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// BusySet is the per-pass set of occupied intervals of one owner.
// It is not safe for concurrent use.
type BusySet struct {
	items []Interval
}

func NewBusySet(items ...Interval) *BusySet {
	b := &BusySet{}
	for _, iv := range items {
		b.Add(iv)
	}
	return b
}

// Add inserts iv. Empty intervals occupy no time and are dropped.
func (b *BusySet) Add(iv Interval) {
	if iv.Empty() {
		return
	}
	b.items = append(b.items, iv)
}

func (b *BusySet) Len() int { return len(b.items) }

// Within returns the intervals overlapping [from, to), sorted by start.
func (b *BusySet) Within(from, to time.Time) []Interval {
	window := Interval{Start: from, End: to}
	out := make([]Interval, 0, 8)
	for _, iv := range b.items {
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	sortIntervals(out)
	return out
}

// Intervals returns a sorted copy of every interval in the set.
func (b *BusySet) Intervals() []Interval {
	out := append([]Interval(nil), b.items...)
	sortIntervals(out)
	return out
}

func sortIntervals(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		if !ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].Start.Before(ivs[j].Start)
		}
		return ivs[i].End.Before(ivs[j].End)
	})
}

// State is the terminal state of a task's search.
type State int

const (
	StateSearching State = iota
	StatePlaced
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePlaced:
		return "placed"
	case StateExhausted:
		return "exhausted"
	default:
		return "searching"
	}
}

// Reason explains an exhausted search.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoSlot          Reason = "no_slot"
	ReasonDeadlinePassed  Reason = "deadline_passed"
	ReasonInvalidDuration Reason = "invalid_duration"
)

// Outcome is the per-task result of a placement pass.
type Outcome struct {
	TaskID string
	State  State
	Slot   Interval // set when State == StatePlaced
	Reason Reason   // set when State == StateExhausted
}

func (o Outcome) Placed() bool { return o.State == StatePlaced }
