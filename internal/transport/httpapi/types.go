package httpapi

import (
	"context"
	"errors"
	"time"

	"novacal/internal/autoschedule"
	"novacal/internal/schedule"
	"novacal/internal/storage"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config controls the listener and request limits.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodyBytes caps request bodies. <= 0 means 1 MiB.
	MaxBodyBytes int64
	// RatePerMinute is the per-owner request budget. <= 0 disables limiting.
	RatePerMinute int
	Burst         int
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.RatePerMinute > 0 && c.Burst <= 0 {
		c.Burst = max(1, c.RatePerMinute/6)
	}
	return c
}

// Scheduler runs passes and reports effective working hours (see autoschedule.Service).
type Scheduler interface {
	Schedule(ctx context.Context, req autoschedule.Request) (autoschedule.Result, error)
	Hours(ctx context.Context, ownerID string) (schedule.WeeklyHours, error)
}

// HoursWriter persists working hours (see storage.Store).
type HoursWriter interface {
	PutWorkingHours(ctx context.Context, ownerID string, hours []storage.WorkingHours) error
}

type scheduleRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type placementJSON struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type scheduleResponse struct {
	Scheduled     []placementJSON   `json:"scheduled"`
	Unschedulable []string          `json:"unschedulable"`
	Reasons       map[string]string `json:"reasons,omitempty"`
	Missing       []string          `json:"missing"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// commitErrorResponse is the 500 body of a pass whose commit aborted. It keeps
// the full report so no task outcome is lost.
type commitErrorResponse struct {
	Error string `json:"error"`
	scheduleResponse
	Failed []string `json:"failed"`
}

type hoursJSON struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}
