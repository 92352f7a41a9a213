package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"novacal/internal/schedule"
)

type memoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]schedule.Task
	hours  map[string]map[time.Weekday]WorkingHours
	tokens map[string]string
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{
		tasks:  map[string]schedule.Task{},
		hours:  map[string]map[time.Weekday]WorkingHours{},
		tokens: map[string]string{},
	}
}

func (s *memoryStore) TasksByIDs(ctx context.Context, ownerID string, ids []string) ([]schedule.Task, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	seen := map[string]bool{}
	out := make([]schedule.Task, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, ok := s.tasks[id]; ok && t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memoryStore) TasksInRange(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Task, error) {
	_ = ctx
	window := schedule.Interval{Start: from, End: to}
	return s.filter(ownerID, func(t schedule.Task) bool { return t.Busy().Overlaps(window) })
}

func (s *memoryStore) ListTasks(ctx context.Context, ownerID string) ([]schedule.Task, error) {
	_ = ctx
	return s.filter(ownerID, func(schedule.Task) bool { return true })
}

func (s *memoryStore) StaleAutoTasks(ctx context.Context, endedBefore, dueFrom time.Time) ([]schedule.Task, error) {
	_ = ctx
	return s.filter("", func(t schedule.Task) bool {
		return t.AutoSchedule && !t.Completed &&
			t.End.Before(endedBefore) && !t.EffectiveDeadline().Before(dueFrom)
	})
}

// filter matches every owner when ownerID is empty.
func (s *memoryStore) filter(ownerID string, keep func(schedule.Task) bool) ([]schedule.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []schedule.Task
	for _, t := range s.tasks {
		if (ownerID == "" || t.OwnerID == ownerID) && keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) UpdateTaskTimes(ctx context.Context, id string, start, end time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Start = start.UTC()
	t.End = end.UTC()
	s.tasks[id] = t
	return nil
}

func (s *memoryStore) CreateTask(ctx context.Context, t schedule.Task) (schedule.Task, error) {
	_ = ctx
	t, err := normalizeNew(t, newID)
	if err != nil {
		return t, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return t, ErrClosed
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *memoryStore) WorkingHours(ctx context.Context, ownerID string) ([]WorkingHours, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]WorkingHours, 0, 7)
	for _, h := range s.hours[ownerID] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (s *memoryStore) PutWorkingHours(ctx context.Context, ownerID string, hours []WorkingHours) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	m := s.hours[ownerID]
	if m == nil {
		m = map[time.Weekday]WorkingHours{}
		s.hours[ownerID] = m
	}
	for _, h := range hours {
		m[h.Day] = h
	}
	return nil
}

func (s *memoryStore) OwnerByTokenHash(ctx context.Context, hash string) (string, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	owner, ok := s.tokens[hash]
	return owner, ok, nil
}

func (s *memoryStore) PutToken(ctx context.Context, hash, ownerID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tokens[hash] = ownerID
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
