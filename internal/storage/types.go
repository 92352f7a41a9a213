package storage

import (
	"context"
	"errors"
	"time"

	"novacal/internal/schedule"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "memory": in-process maps (data is lost on exit)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// WorkingHours is one owner's window for one weekday.
type WorkingHours struct {
	Day   time.Weekday
	Start schedule.Clock
	End   schedule.Clock
}

// Store is the persistence API used by the scheduling service, the HTTP API and the CLI.
//
// All times cross this boundary in UTC.
type Store interface {
	// TasksByIDs returns the tasks among ids owned by ownerID. Unknown or foreign ids are skipped.
	TasksByIDs(ctx context.Context, ownerID string, ids []string) ([]schedule.Task, error)
	// TasksInRange returns ownerID's tasks overlapping [from, to).
	TasksInRange(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Task, error)
	// ListTasks returns every task of ownerID ordered by start.
	ListTasks(ctx context.Context, ownerID string) ([]schedule.Task, error)
	// UpdateTaskTimes moves a task. It returns ErrNotFound for unknown ids.
	UpdateTaskTimes(ctx context.Context, id string, start, end time.Time) error
	// CreateTask inserts t, filling ID, Importance and Due defaults.
	CreateTask(ctx context.Context, t schedule.Task) (schedule.Task, error)
	// StaleAutoTasks returns open auto-scheduled tasks that ended before endedBefore
	// and whose effective deadline is not before dueFrom.
	StaleAutoTasks(ctx context.Context, endedBefore, dueFrom time.Time) ([]schedule.Task, error)

	WorkingHours(ctx context.Context, ownerID string) ([]WorkingHours, error)
	// PutWorkingHours replaces the given weekdays for ownerID. Other weekdays are untouched.
	PutWorkingHours(ctx context.Context, ownerID string, hours []WorkingHours) error

	// OwnerByTokenHash resolves an API token hash to its owner.
	OwnerByTokenHash(ctx context.Context, hash string) (ownerID string, ok bool, err error)
	PutToken(ctx context.Context, hash, ownerID string) error

	Close() error
}

// normalizeNew applies creation defaults: a fresh id, importance 2, due defaulting to end.
func normalizeNew(t schedule.Task, newID func() string) (schedule.Task, error) {
	if t.OwnerID == "" {
		return t, errors.New("task owner is required")
	}
	if t.End.Before(t.Start) {
		return t, errors.New("task end is before start")
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Importance == 0 {
		t.Importance = schedule.DefaultImportance
	}
	if t.Importance < schedule.ImportanceLow || t.Importance > schedule.ImportanceHigh {
		return t, errors.New("task importance must be 1..3")
	}
	if t.Due.IsZero() {
		t.Due = t.End
	}
	t.Start = t.Start.UTC()
	t.End = t.End.UTC()
	t.Due = t.Due.UTC()
	return t, nil
}
