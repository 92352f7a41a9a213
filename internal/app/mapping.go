package app

import (
	"strings"
	"time"

	"novacal/internal/autoschedule"
	"novacal/internal/config"
	"novacal/internal/gcal"
	"novacal/internal/notifier"
	"novacal/internal/observability/pprof"
	"novacal/internal/storage"
	"novacal/internal/sweep"
	"novacal/internal/transport/httpapi"
	logx "novacal/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapSchedule(cfg *config.Config) (autoschedule.Config, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return autoschedule.Config{}, err
	}
	hours, err := cfg.Schedule.DefaultHours()
	if err != nil {
		return autoschedule.Config{}, err
	}
	return autoschedule.Config{
		Location:       loc,
		DefaultHours:   hours,
		MaxBatch:       cfg.Schedule.MaxBatch,
		MaxHorizonDays: cfg.Schedule.MaxHorizonDays,
	}, nil
}

func mapHTTP(cfg *config.Config) (httpapi.Config, error) {
	read, err := config.ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Address:       cfg.HTTP.Address,
		ReadTimeout:   read,
		WriteTimeout:  write,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		RatePerMinute: cfg.HTTP.RatePerMinute,
		Burst:         cfg.HTTP.Burst,
	}, nil
}

func mapSweep(cfg *config.Config) (sweep.Config, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return sweep.Config{}, err
	}
	timeout, err := config.ParseDurationField("sweep.timeout", cfg.Sweep.Timeout)
	if err != nil {
		return sweep.Config{}, err
	}
	return sweep.Config{
		Enabled:  cfg.Sweep.Enabled,
		Schedule: cfg.Sweep.SweepSchedule(),
		Location: loc,
		Timeout:  timeout,
		MaxBatch: cfg.Schedule.MaxBatch,
	}, nil
}

func mapNotifier(cfg *config.Config) (notifier.Config, error) {
	base, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:    cfg.Notifier.Enabled,
		Chats:      cfg.Notifier.Chats,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
		RetryBase:  base,
	}, nil
}

// mapGoogleCalendar reports ok=false when the source is absent or disabled.
func mapGoogleCalendar(cfg *config.Config) (gcal.Config, bool, error) {
	gc := cfg.GoogleCalendar
	if gc == nil || !gc.Enabled {
		return gcal.Config{}, false, nil
	}
	timeout, err := config.ParseDurationField("google_calendar.timeout", gc.Timeout)
	if err != nil {
		return gcal.Config{}, false, err
	}
	return gcal.Config{
		CredentialsFile: gc.CredentialsFile,
		TokenFile:       gc.TokenFile,
		Calendars:       gc.Calendars,
		Timeout:         timeout,
	}, true, nil
}

func mapPprof(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled:              cfg.Pprof.Enabled,
		Addr:                 strings.TrimSpace(cfg.Pprof.Addr),
		Token:                strings.TrimSpace(cfg.Pprof.Token),
		MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
		BlockProfileRate:     cfg.Pprof.BlockProfileRate,
	}
}
