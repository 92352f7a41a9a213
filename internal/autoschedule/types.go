package autoschedule

import (
	"context"
	"time"

	"novacal/internal/schedule"
)

// Trigger names where a pass came from. It is logged and published.
const (
	TriggerAPI   = "api"
	TriggerSweep = "sweep"
	TriggerCLI   = "cli"
)

// Config controls placement. It may be swapped at runtime via Service.Apply.
type Config struct {
	// Location defines calendar days and working windows. Defaults to UTC.
	Location *time.Location
	// DefaultHours applies to weekdays an owner has not configured.
	DefaultHours schedule.DayHours
	// MaxBatch caps the number of task ids per request. <= 0 means 200.
	MaxBatch int
	// MaxHorizonDays caps the forward day search. <= 0 means schedule.DefaultMaxHorizonDays.
	MaxHorizonDays int
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if !c.DefaultHours.Open() {
		c.DefaultHours = schedule.DefaultDayHours
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 200
	}
	if c.MaxHorizonDays <= 0 {
		c.MaxHorizonDays = schedule.DefaultMaxHorizonDays
	}
	return c
}

// Request is one scheduling pass for one owner.
type Request struct {
	OwnerID string
	TaskIDs []string
	Trigger string
	// DryRun computes placements without writing them.
	DryRun bool
}

// Result is the outcome of a pass. It is returned alongside a *schedule.CommitError
// when a write fails, so callers can report partial success.
type Result struct {
	schedule.Report
	// Missing lists requested ids that do not resolve to the owner's tasks.
	Missing []string
}

// BusySource contributes extra busy intervals (e.g. an external calendar).
type BusySource interface {
	Name() string
	Busy(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Interval, error)
}
