package schedule

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Clock
		ok   bool
	}{
		{raw: "08:00", want: Clock{Hour: 8}, ok: true},
		{raw: "9:30", want: Clock{Hour: 9, Minute: 30}, ok: true},
		{raw: " 22:15 ", want: Clock{Hour: 22, Minute: 15}, ok: true},
		{raw: "24:00", want: Clock{Hour: 24}, ok: true},
		{raw: "24:30"},
		{raw: "25:00"},
		{raw: "12:60"},
		{raw: "noon"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseClock(tt.raw)
			if tt.ok != (err == nil) {
				t.Fatalf("ParseClock(%q) err = %v, want ok=%v", tt.raw, err, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Fatalf("ParseClock(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestWeeklyHoursWindow(t *testing.T) {
	t.Parallel()
	week := UniformWeek(DefaultDayHours)
	week[time.Sunday] = DayHours{}
	week[time.Friday] = DayHours{Start: Clock{Hour: 18}, End: Clock{Hour: 24}}

	monday := time.Date(2026, time.March, 2, 13, 0, 0, 0, time.UTC)
	w, ok := week.Window(monday)
	if !ok || !w.Start.Equal(at(8, 0)) || !w.End.Equal(at(22, 0)) {
		t.Fatalf("monday window = %v ok=%v", w, ok)
	}
	if _, ok := week.Window(monday.AddDate(0, 0, 6)); ok {
		t.Fatal("sunday should be closed")
	}
	fri, ok := week.Window(monday.AddDate(0, 0, 4))
	if !ok || fri.End.Day() != 7 || fri.End.Hour() != 0 {
		t.Fatalf("friday window should end at next midnight, got %v", fri)
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]time.Weekday{"Monday": time.Monday, "sun": time.Sunday, " FRIDAY ": time.Friday} {
		got, err := ParseWeekday(raw)
		if err != nil || got != want {
			t.Fatalf("ParseWeekday(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseWeekday("someday"); err == nil {
		t.Fatal("expected error")
	}
}
