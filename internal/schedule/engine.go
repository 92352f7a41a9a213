package schedule

import "time"

// DefaultMaxHorizonDays caps the forward day search when Options leaves it unset.
const DefaultMaxHorizonDays = 60

// Options configures one placement pass.
type Options struct {
	// Now anchors "today". Placements on today never start before Now (rounded up to the minute).
	Now time.Time
	// Location defines calendar days. Defaults to UTC.
	Location *time.Location
	// Window returns the working window for a day. Defaults to DefaultDayHours every day.
	Window WindowFunc
	// MaxHorizonDays bounds the search to today + MaxHorizonDays. <= 0 uses DefaultMaxHorizonDays.
	MaxHorizonDays int
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Window == nil {
		o.Window = UniformWeek(DefaultDayHours).Window
	}
	if o.MaxHorizonDays <= 0 {
		o.MaxHorizonDays = DefaultMaxHorizonDays
	}
	return o
}

// Engine places tasks into a BusySet. It holds no state between calls.
type Engine struct {
	opt Options
}

func NewEngine(opt Options) *Engine {
	return &Engine{opt: opt.withDefaults()}
}

// Plan sorts batch and places it against busy. busy is mutated.
func Plan(batch []Task, busy *BusySet, opt Options) []Outcome {
	return NewEngine(opt).Place(SortBatch(batch), busy)
}

// Place processes tasks in the given order. Each placement is added to busy
// before the next task is searched, so a batch never double-books itself.
func (e *Engine) Place(ordered []Task, busy *BusySet) []Outcome {
	if busy == nil {
		busy = NewBusySet()
	}
	out := make([]Outcome, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, e.placeOne(t, busy))
	}
	return out
}

func (e *Engine) placeOne(t Task, busy *BusySet) Outcome {
	loc := e.opt.Location
	res := Outcome{TaskID: t.ID, State: StateSearching}

	duration := t.Duration()
	if duration <= 0 {
		res.State = StateExhausted
		res.Reason = ReasonInvalidDuration
		return res
	}

	today := dayOf(e.opt.Now, loc)
	lastDay := dayOf(t.EffectiveDeadline(), loc)
	if lastDay.Before(today) {
		res.State = StateExhausted
		res.Reason = ReasonDeadlinePassed
		return res
	}
	if horizon := addDays(today, e.opt.MaxHorizonDays); lastDay.After(horizon) {
		lastDay = horizon
	}
	notBefore := ceilMinute(e.opt.Now)

	for day := today; !day.After(lastDay) && res.State == StateSearching; day = addDays(day, 1) {
		window, ok := e.opt.Window(day)
		if !ok {
			continue
		}
		if day.Equal(today) && window.Start.Before(notBefore) {
			window.Start = notBefore
		}
		if window.Empty() {
			continue
		}

		slots := FreeSlots(busy.Within(window.Start, window.End), window.Start, window.End)
		slot, found := firstFit(slots, duration)
		if !found {
			continue
		}
		placed := Interval{Start: slot.Start, End: slot.Start.Add(duration)}
		busy.Add(placed)
		res.State = StatePlaced
		res.Slot = placed
	}

	if res.State == StateSearching {
		res.State = StateExhausted
		res.Reason = ReasonNoSlot
	}
	return res
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func addDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

func ceilMinute(t time.Time) time.Time {
	tr := t.Truncate(time.Minute)
	if tr.Equal(t) {
		return t
	}
	return tr.Add(time.Minute)
}
