package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Clock is a wall-clock time of day. Hour 24 with Minute 0 means end of day.
type Clock struct {
	Hour   int
	Minute int
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseClock parses "HH:MM" (00:00..24:00).
func ParseClock(raw string) (Clock, error) {
	m := reClock.FindStringSubmatch(raw)
	if len(m) != 3 {
		return Clock{}, fmt.Errorf("invalid time of day %q (want HH:MM)", raw)
	}
	hh := int(m[1][0] - '0')
	if len(m[1]) == 2 {
		hh = hh*10 + int(m[1][1]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return Clock{}, fmt.Errorf("invalid minutes in %q", raw)
	}
	if hh > 24 || (hh == 24 && mm != 0) {
		return Clock{}, fmt.Errorf("invalid hour in %q", raw)
	}
	return Clock{Hour: hh, Minute: mm}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// minutes since midnight, for ordering.
func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

// On anchors c to the calendar day of day (in day's location).
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// DayHours is the working window of one weekday. Start == End means closed.
type DayHours struct {
	Start Clock
	End   Clock
}

func (h DayHours) Open() bool { return h.End.minutes() > h.Start.minutes() }

func (h DayHours) Validate() error {
	if h.End.minutes() < h.Start.minutes() {
		return fmt.Errorf("window end %s is before start %s", h.End, h.Start)
	}
	return nil
}

// DefaultDayHours is the fixed 08:00-22:00 window used when nothing is configured.
var DefaultDayHours = DayHours{Start: Clock{Hour: 8}, End: Clock{Hour: 22}}

// WeeklyHours holds one window per weekday, indexed by time.Weekday.
type WeeklyHours [7]DayHours

// UniformWeek returns a week where every day uses h.
func UniformWeek(h DayHours) WeeklyHours {
	var w WeeklyHours
	for i := range w {
		w[i] = h
	}
	return w
}

// Window implements WindowFunc.
func (w WeeklyHours) Window(day time.Time) (Interval, bool) {
	h := w[day.Weekday()]
	if !h.Open() {
		return Interval{}, false
	}
	return Interval{Start: h.Start.On(day), End: h.End.On(day)}, true
}

// WindowFunc returns the working window of the calendar day containing day.
// ok is false when the day is closed.
type WindowFunc func(day time.Time) (window Interval, ok bool)

// ParseWeekday accepts English day names ("Monday", "mon") case-insensitively.
func ParseWeekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", raw)
}
