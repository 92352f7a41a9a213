// Package sweep periodically re-schedules auto-scheduled tasks whose slot has
// passed without being completed.
//
// A task qualifies when it is flagged auto-schedule, is not completed, ended
// before now, and its effective deadline has not passed. Qualifying tasks are
// grouped by owner and submitted in passes of at most MaxBatch ids.
package sweep

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"novacal/internal/autoschedule"
	"novacal/internal/schedule"
	logx "novacal/pkg/logx"
)

const defaultMaxBatch = 200

// Config controls the sweep trigger.
type Config struct {
	Enabled  bool
	Schedule string
	Location *time.Location
	// Timeout bounds one sweep run. <= 0 means 2m.
	Timeout time.Duration
	// MaxBatch caps the ids per pass and should match the scheduler's limit. <= 0 means 200.
	MaxBatch int
}

// StaleFinder lists stale auto tasks across owners (see storage.Store).
type StaleFinder interface {
	StaleAutoTasks(ctx context.Context, endedBefore, dueFrom time.Time) ([]schedule.Task, error)
}

// Scheduler runs one pass (see autoschedule.Service).
type Scheduler interface {
	Schedule(ctx context.Context, req autoschedule.Request) (autoschedule.Result, error)
}

// Report summarizes one sweep run.
type Report struct {
	Owners        int
	Tasks         int
	Passes        int
	Scheduled     int
	Unschedulable int
	Failed        int
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	finder  StaleFinder
	sched   Scheduler
	log     logx.Logger
	now     func() time.Time
	parser  cron.Parser
	c       *cron.Cron
	baseCtx context.Context
	running sync.Mutex
}

func New(cfg Config, finder StaleFinder, sched Scheduler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		finder: finder,
		sched:  sched,
		log:    log,
		now:    time.Now,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks a schedule string without applying it.
func (s *Service) Validate(raw string) error {
	spec, err := cronSpec(raw)
	if err != nil {
		return err
	}
	_, err = s.parser.Parse(spec)
	return err
}

// Start begins cron triggering. ctx bounds every triggered run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cfg := s.cfg
	if !cfg.Enabled || s.c != nil {
		return nil
	}
	spec, err := cronSpec(cfg.Schedule)
	if err != nil {
		return err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	ctx := s.baseCtx
	if _, err := c.AddFunc(spec, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("sweep started", logx.String("schedule", spec), logx.String("tz", loc.String()))
	return nil
}

// Apply swaps the config, restarting the trigger when it changed.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.baseCtx == nil {
		return nil
	}
	if old.Enabled == cfg.Enabled && old.Schedule == cfg.Schedule && sameLocation(old.Location, cfg.Location) {
		return nil
	}
	s.stopLocked(context.Background())
	return s.startLocked()
}

// Stop halts triggering and waits for a running sweep up to ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
	s.baseCtx = nil
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.c == nil {
		return
	}
	c := s.c
	s.c = nil
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("sweep stopped")
}

// RunOnce performs one sweep now. Concurrent calls are serialized.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	s.mu.Lock()
	timeout, batch := s.cfg.Timeout, s.cfg.MaxBatch
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if batch <= 0 {
		batch = defaultMaxBatch
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := s.now()
	stale, err := s.finder.StaleAutoTasks(ctx, now, now)
	if err != nil {
		s.log.Error("sweep query failed", logx.Err(err))
		return Report{}, err
	}

	byOwner := map[string][]string{}
	for _, t := range stale {
		byOwner[t.OwnerID] = append(byOwner[t.OwnerID], t.ID)
	}
	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	rep := Report{Owners: len(owners), Tasks: len(stale)}
	var errs []error
owners:
	for _, owner := range owners {
		ids := byOwner[owner]
		for len(ids) > 0 {
			n := min(batch, len(ids))
			chunk := ids[:n]
			ids = ids[n:]
			res, err := s.sched.Schedule(ctx, autoschedule.Request{
				OwnerID: owner,
				TaskIDs: chunk,
				Trigger: autoschedule.TriggerSweep,
			})
			rep.Passes++
			rep.Scheduled += len(res.Scheduled)
			rep.Unschedulable += len(res.Unschedulable)
			rep.Failed += len(res.Failed)
			if err != nil {
				s.log.Warn("sweep pass failed", logx.String("owner", owner), logx.Int("batch", n), logx.Err(err))
				errs = append(errs, err)
				if ctx.Err() != nil {
					break owners
				}
			}
		}
	}
	if rep.Tasks > 0 {
		s.log.Info("sweep completed",
			logx.Int("owners", rep.Owners),
			logx.Int("tasks", rep.Tasks),
			logx.Int("passes", rep.Passes),
			logx.Int("scheduled", rep.Scheduled),
			logx.Int("unschedulable", rep.Unschedulable),
		)
	}
	return rep, errors.Join(errs...)
}

func sameLocation(a, b *time.Location) bool {
	if a == nil {
		a = time.UTC
	}
	if b == nil {
		b = time.UTC
	}
	return a.String() == b.String()
}

// cronLogger adapts logx.Logger to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
