package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"novacal/internal/schedule"
)

const defaultSweepSchedule = "*/30 * * * *"

// Location resolves the scheduling timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// DefaultHours resolves day_start/day_end, falling back to 08:00-22:00.
func (c ScheduleConfig) DefaultHours() (schedule.DayHours, error) {
	h := schedule.DefaultDayHours
	if s := strings.TrimSpace(c.DayStart); s != "" {
		clk, err := schedule.ParseClock(s)
		if err != nil {
			return h, fmt.Errorf("schedule.day_start: %w", err)
		}
		h.Start = clk
	}
	if s := strings.TrimSpace(c.DayEnd); s != "" {
		clk, err := schedule.ParseClock(s)
		if err != nil {
			return h, fmt.Errorf("schedule.day_end: %w", err)
		}
		h.End = clk
	}
	if !h.Open() {
		return h, fmt.Errorf("schedule: day_end %s must be after day_start %s", h.End, h.Start)
	}
	return h, nil
}

// SweepSchedule returns the configured schedule or the half-hourly default.
func (c SweepConfig) SweepSchedule() string {
	if s := strings.TrimSpace(c.Schedule); s != "" {
		return s
	}
	return defaultSweepSchedule
}

// Validate checks every field that can be checked without side effects.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required for sqlite"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	_, err := cfg.Schedule.Location()
	add(err)
	_, err = cfg.Schedule.DefaultHours()
	add(err)
	if cfg.Schedule.MaxBatch < 0 {
		add(errors.New("schedule.max_batch must be >= 0"))
	}
	if cfg.Schedule.MaxHorizonDays < 0 {
		add(errors.New("schedule.max_horizon_days must be >= 0"))
	}

	for path, raw := range map[string]string{
		"http.read_timeout":    cfg.HTTP.ReadTimeout,
		"http.write_timeout":   cfg.HTTP.WriteTimeout,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
		"sweep.timeout":        cfg.Sweep.Timeout,
		"notifier.retry_base":  cfg.Notifier.RetryBase,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}
	if cfg.HTTP.RatePerMinute < 0 {
		add(errors.New("http.rate_per_minute must be >= 0"))
	}

	if cfg.Notifier.Enabled && strings.TrimSpace(cfg.Notifier.Token) == "" {
		add(errors.New("notifier.token is required when notifier is enabled"))
	}
	if gc := cfg.GoogleCalendar; gc != nil && gc.Enabled {
		if strings.TrimSpace(gc.CredentialsFile) == "" || strings.TrimSpace(gc.TokenFile) == "" {
			add(errors.New("google_calendar: credentials_file and token_file are required"))
		}
		_, err := ParseDurationField("google_calendar.timeout", gc.Timeout)
		add(err)
	}
	if p := cfg.Pprof; p.Enabled && p.Addr != "" {
		if _, _, err := net.SplitHostPort(p.Addr); err != nil {
			add(fmt.Errorf("pprof.addr: %w", err))
		}
	}
	if cfg.Pprof.MutexProfileFraction < 0 || cfg.Pprof.BlockProfileRate < 0 {
		add(errors.New("pprof: profile rates must be >= 0"))
	}
	return errors.Join(errs...)
}
