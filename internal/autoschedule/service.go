package autoschedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"novacal/internal/eventbus"
	"novacal/internal/schedule"
	"novacal/internal/storage"
	logx "novacal/pkg/logx"
)

// Store is the subset of storage.Store a pass needs.
type Store interface {
	TasksByIDs(ctx context.Context, ownerID string, ids []string) ([]schedule.Task, error)
	TasksInRange(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Task, error)
	WorkingHours(ctx context.Context, ownerID string) ([]storage.WorkingHours, error)
	schedule.Writer
}

// Service runs scheduling passes. Passes for the same owner are serialized;
// passes for different owners run concurrently.
type Service struct {
	mu  sync.RWMutex
	cfg Config

	store   Store
	sources []BusySource
	bus     eventbus.Bus
	log     logx.Logger
	now     func() time.Time

	locks ownerLocks
}

type Option func(*Service)

// WithClock overrides time.Now (tests, CLI "--at").
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithBusySources adds external busy interval sources.
func WithBusySources(src ...BusySource) Option {
	return func(s *Service) { s.sources = append(s.sources, src...) }
}

// WithBus publishes a PassSummary after every pass.
func WithBus(bus eventbus.Bus) Option { return func(s *Service) { s.bus = bus } }

func New(cfg Config, store Store, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:   cfg.withDefaults(),
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps the placement config. In-flight passes keep the config they started with.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Schedule runs one pass: validate, load, place, commit.
//
// Request-level failures (ErrUnauthorized, ErrValidation, ErrNotFound, load errors) happen before
// any write. A failed write returns the partial Result together with a *schedule.CommitError.
func (s *Service) Schedule(ctx context.Context, req Request) (Result, error) {
	cfg := s.config()

	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return Result{}, ErrUnauthorized
	}
	ids := normalizeIDs(req.TaskIDs)
	if len(ids) == 0 {
		return Result{}, fmt.Errorf("%w: task_ids must not be empty", ErrValidation)
	}
	if len(ids) > cfg.MaxBatch {
		return Result{}, fmt.Errorf("%w: %d task ids exceeds limit %d", ErrValidation, len(ids), cfg.MaxBatch)
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}
	log := s.log.With(logx.String("owner", owner), logx.String("trigger", trigger))

	unlock, err := s.locks.lock(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	started := time.Now()
	now := s.now()

	batch, err := s.store.TasksByIDs(ctx, owner, ids)
	if err != nil {
		return Result{}, fmt.Errorf("load tasks: %w", err)
	}
	if len(batch) == 0 {
		return Result{}, ErrNotFound
	}
	missing := missingIDs(ids, batch)

	from, to := searchRange(batch, now, cfg)
	busy, err := s.loadBusy(ctx, log, owner, batch, from, to)
	if err != nil {
		return Result{}, err
	}
	week, err := s.weeklyHours(ctx, owner, cfg)
	if err != nil {
		return Result{}, err
	}

	outcomes := schedule.Plan(batch, busy, schedule.Options{
		Now:            now,
		Location:       cfg.Location,
		Window:         week.Window,
		MaxHorizonDays: cfg.MaxHorizonDays,
	})

	var w schedule.Writer = s.store
	if req.DryRun {
		w = discardWriter{}
	}
	rep, commitErr := schedule.Commit(ctx, w, outcomes)
	res := Result{Report: rep, Missing: missing}

	for _, p := range rep.Scheduled {
		log.Trace("task placed", logx.String("task", p.ID), logx.Time("start", p.Start), logx.Time("end", p.End))
	}
	for _, id := range rep.Unschedulable {
		log.Info("task unschedulable", logx.String("task", id), logx.String("reason", string(rep.Reasons[id])))
	}
	fields := []logx.Field{
		logx.Int("batch", len(batch)),
		logx.Int("scheduled", len(rep.Scheduled)),
		logx.Int("unschedulable", len(rep.Unschedulable)),
		logx.Int("missing", len(missing)),
		logx.Bool("dry_run", req.DryRun),
		logx.Duration("took", time.Since(started)),
	}
	if commitErr != nil {
		log.Error("commit aborted", append(fields, logx.Err(commitErr), logx.Strings("uncommitted", rep.Failed))...)
	} else {
		log.Info("pass completed", fields...)
	}
	if !req.DryRun {
		s.publish(owner, trigger, rep, commitErr)
	}
	return res, commitErr
}

// searchRange covers every calendar day a task in batch may be placed on.
func searchRange(batch []schedule.Task, now time.Time, cfg Config) (time.Time, time.Time) {
	loc := cfg.Location
	y, m, d := now.In(loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)

	last := from
	for _, t := range batch {
		if dl := t.EffectiveDeadline(); dl.After(last) {
			last = dl
		}
	}
	horizon := from.AddDate(0, 0, cfg.MaxHorizonDays)
	if last.After(horizon) {
		last = horizon
	}
	y, m, d = last.In(loc).Date()
	// Windows may close at 24:00, so read through the next midnight.
	to := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return from, to
}

func (s *Service) loadBusy(ctx context.Context, log logx.Logger, owner string, batch []schedule.Task, from, to time.Time) (*schedule.BusySet, error) {
	existing, err := s.store.TasksInRange(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}
	inBatch := make(map[string]struct{}, len(batch))
	for _, t := range batch {
		inBatch[t.ID] = struct{}{}
	}
	busy := schedule.NewBusySet()
	for _, t := range existing {
		if _, skip := inBatch[t.ID]; skip {
			continue
		}
		busy.Add(t.Busy())
	}
	for _, src := range s.sources {
		ivs, err := src.Busy(ctx, owner, from, to)
		if err != nil {
			// External calendars are advisory; the task store remains authoritative.
			log.Warn("busy source failed; continuing without it", logx.String("source", src.Name()), logx.Err(err))
			continue
		}
		for _, iv := range ivs {
			busy.Add(iv)
		}
	}
	return busy, nil
}

// Hours returns ownerID's effective week: stored rows over the configured default.
func (s *Service) Hours(ctx context.Context, ownerID string) (schedule.WeeklyHours, error) {
	return s.weeklyHours(ctx, ownerID, s.config())
}

func (s *Service) weeklyHours(ctx context.Context, owner string, cfg Config) (schedule.WeeklyHours, error) {
	week := schedule.UniformWeek(cfg.DefaultHours)
	rows, err := s.store.WorkingHours(ctx, owner)
	if err != nil {
		return week, fmt.Errorf("load working hours: %w", err)
	}
	for _, h := range rows {
		week[h.Day] = schedule.DayHours{Start: h.Start, End: h.End}
	}
	return week, nil
}

func (s *Service) publish(owner, trigger string, rep schedule.Report, err error) {
	if s.bus == nil {
		return
	}
	sum := eventbus.PassSummary{
		OwnerID:       owner,
		Trigger:       trigger,
		Scheduled:     len(rep.Scheduled),
		Unschedulable: append([]string(nil), rep.Unschedulable...),
		Failed:        append([]string(nil), rep.Failed...),
	}
	if err != nil {
		sum.Err = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypePassCompleted, Data: sum})
}

func normalizeIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested []string, found []schedule.Task) []string {
	have := make(map[string]struct{}, len(found))
	for _, t := range found {
		have[t.ID] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

type discardWriter struct{}

func (discardWriter) UpdateTaskTimes(context.Context, string, time.Time, time.Time) error { return nil }

// IsRequestError reports errors that reject a request before any write.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound)
}
