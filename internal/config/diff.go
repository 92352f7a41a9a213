package config

import (
	"reflect"

	logx "novacal/pkg/logx"
)

// SummarizeChange lists changed top-level sections plus safe log fields.
// Secrets (tokens) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		fields = append(fields, logx.String("http.address", newCfg.HTTP.Address), logx.Int("http.rate_per_minute", newCfg.HTTP.RatePerMinute))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields, logx.String("logging.level", newCfg.Logging.Level), logx.Bool("logging.file", newCfg.Logging.File.Enabled))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		fields = append(fields,
			logx.String("schedule.timezone", newCfg.Schedule.Timezone),
			logx.Int("schedule.max_batch", newCfg.Schedule.MaxBatch),
			logx.Int("schedule.max_horizon_days", newCfg.Schedule.MaxHorizonDays),
		)
	}
	if !reflect.DeepEqual(oldCfg.Auth, newCfg.Auth) {
		changed = append(changed, "auth")
		fields = append(fields, logx.Int("auth.token_count", len(newCfg.Auth.Tokens)))
	}
	if oldCfg.Sweep != newCfg.Sweep {
		changed = append(changed, "sweep")
		fields = append(fields, logx.Bool("sweep.enabled", newCfg.Sweep.Enabled), logx.String("sweep.schedule", newCfg.Sweep.SweepSchedule()))
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		fields = append(fields,
			logx.Bool("notifier.enabled", newCfg.Notifier.Enabled),
			logx.Bool("notifier.token_set", newCfg.Notifier.Token != ""),
			logx.Int("notifier.chats", len(newCfg.Notifier.Chats)),
		)
	}
	if !reflect.DeepEqual(oldCfg.GoogleCalendar, newCfg.GoogleCalendar) {
		changed = append(changed, "google_calendar")
		fields = append(fields, logx.Bool("google_calendar.enabled", newCfg.GoogleCalendar != nil && newCfg.GoogleCalendar.Enabled))
	}
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		fields = append(fields, logx.Bool("pprof.enabled", newCfg.Pprof.Enabled), logx.String("pprof.addr", newCfg.Pprof.Addr))
	}
	return changed, fields
}
