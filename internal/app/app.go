// Package app wires the daemon: it builds every service from the config file,
// starts them under one supervisor and applies hot-reloaded config.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novacal/internal/autoschedule"
	"novacal/internal/config"
	"novacal/internal/eventbus"
	"novacal/internal/gcal"
	"novacal/internal/identity"
	"novacal/internal/notifier"
	"novacal/internal/observability/pprof"
	rtsup "novacal/internal/runtime/supervisor"
	"novacal/internal/storage"
	"novacal/internal/sweep"
	"novacal/internal/transport/httpapi"
	logx "novacal/pkg/logx"
)

// StopReason is logged when the app stops.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched    *autoschedule.Service
	resolver *identity.Static
	http     *httpapi.Server
	sweep    *sweep.Service
	notif    *notifier.Service
	pprof    *pprof.Service
	hasBot   bool
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))

	sc, err := mapStorage(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	closeOnErr := func(err error) (*App, error) {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()

	schedCfg, err := mapSchedule(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	opts := []autoschedule.Option{autoschedule.WithBus(bus)}
	if gc, ok, err := mapGoogleCalendar(cfg); err != nil {
		return closeOnErr(err)
	} else if ok {
		src, err := gcal.New(context.Background(), gc, log.With(logx.String("comp", "gcal")))
		if err != nil {
			return closeOnErr(fmt.Errorf("google_calendar: %w", err))
		}
		opts = append(opts, autoschedule.WithBusySources(src))
		log.Info("google calendar busy source enabled", logx.Int("owners", len(gc.Calendars)))
	}
	sched := autoschedule.New(schedCfg, store, log.With(logx.String("comp", "autoschedule")), opts...)

	resolver := identity.NewStatic(cfg.Auth.Tokens, store)
	hc, err := mapHTTP(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	httpLog := log.With(logx.String("comp", "http"))
	handler := httpapi.NewHandler(hc, sched, store, resolver, httpLog)
	srv := httpapi.NewServer(hc, handler, httpLog)

	swc, err := mapSweep(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	sw := sweep.New(swc, store, sched, log.With(logx.String("comp", "sweep")))

	nc, err := mapNotifier(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	var sender notifier.Sender
	if nc.Enabled {
		tg, err := notifier.NewTelegram(cfg.Notifier.Token)
		if err != nil {
			return closeOnErr(fmt.Errorf("notifier: %w", err))
		}
		sender = tg
	}
	notif := notifier.New(nc, sender, bus, log.With(logx.String("comp", "notifier")))

	pc := mapPprof(cfg)
	if err := pc.Validate(); err != nil {
		return closeOnErr(err)
	}

	return &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      bus,
		store:    store,
		sched:    sched,
		resolver: resolver,
		http:     srv,
		sweep:    sw,
		notif:    notif,
		pprof:    pprof.New(pc, log.With(logx.String("comp", "pprof"))),
		hasBot:   sender != nil,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// HTTPAddr reports the bound API address.
func (a *App) HTTPAddr() string { return a.http.Addr() }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		return a.sweep.Validate(cfg.Sweep.SweepSchedule())
	})

	if err := a.http.Start(); err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	a.sup.Go("http.serve", a.http.Serve)

	if err := a.sweep.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	a.notif.Start(a.sup.Context())
	if err := a.pprof.Start(a.sup.Context()); err != nil {
		a.log.Warn("pprof failed to start", logx.Err(err))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(c, last, cfg)
				last = cfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.log.Info("app started", logx.String("http", a.http.Addr()))
	return nil
}

// applyConfig applies the hot-reloadable sections. http, storage and google_calendar need a restart.
func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	sections, fields := config.SummarizeChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	for _, s := range sections {
		switch s {
		case "http", "storage", "google_calendar":
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogging(cfg))
	a.resolver.Replace(cfg.Auth.Tokens)

	if sc, err := mapSchedule(cfg); err != nil {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}

	if swc, err := mapSweep(cfg); err != nil {
		a.log.Warn("invalid sweep config; keeping previous", logx.Err(err))
	} else if err := a.sweep.Apply(swc); err != nil {
		a.log.Warn("sweep reconfigure failed", logx.Err(err))
	}

	if nc, err := mapNotifier(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := prev != nil && prev.Notifier.Enabled
		a.notif.Apply(nc)
		switch {
		case nc.Enabled && !a.hasBot:
			a.log.Warn("notifier enabled but no bot was created at startup; restart required")
		case wasEnabled && !nc.Enabled:
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && nc.Enabled:
			a.notif.Start(ctx)
		}
	}

	if err := a.pprof.Apply(ctx, mapPprof(cfg)); err != nil {
		a.log.Warn("pprof reconfigure failed", logx.Err(err))
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

// Stop shuts every component down, each step bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	start := time.Now()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.http.Stop(ctx)
	a.sweep.Stop(ctx)
	a.notif.Stop(ctx)
	a.pprof.Stop(ctx)

	var errs []error
	if err := a.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
	return errors.Join(errs...)
}
