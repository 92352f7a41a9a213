package config

// Config is the daemon configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	HTTP           HTTPConfig            `json:"http"`
	Logging        LoggingConfig         `json:"logging"`
	Storage        StorageConfig         `json:"storage"`
	Schedule       ScheduleConfig        `json:"schedule"`
	Auth           AuthConfig            `json:"auth"`
	Sweep          SweepConfig           `json:"sweep"`
	Notifier       NotifierConfig        `json:"notifier"`
	GoogleCalendar *GoogleCalendarConfig `json:"google_calendar,omitempty"`
	Pprof          PprofConfig           `json:"pprof"`
}

// HTTPConfig controls the API listener. Changes require a restart.
type HTTPConfig struct {
	Address      string `json:"address"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty"`
	// RatePerMinute is the per-owner request budget; 0 disables limiting.
	RatePerMinute int `json:"rate_per_minute,omitempty"`
	Burst         int `json:"burst,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the task store. Changes require a restart.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./novacal.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ScheduleConfig controls placement.
//
// Defaults: timezone "UTC", day 08:00-22:00, max_batch 200, max_horizon_days 60.
type ScheduleConfig struct {
	Timezone       string `json:"timezone,omitempty"`
	DayStart       string `json:"day_start,omitempty"`
	DayEnd         string `json:"day_end,omitempty"`
	MaxBatch       int    `json:"max_batch,omitempty"`
	MaxHorizonDays int    `json:"max_horizon_days,omitempty"`
}

// AuthConfig maps static API tokens to owner ids. Tokens issued with the CLI live in storage.
type AuthConfig struct {
	Tokens map[string]string `json:"tokens,omitempty"`
}

type SweepConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec, "@every 15m", a duration ("15m") or HH:MM ("00:30").
	Schedule string `json:"schedule,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type NotifierConfig struct {
	Enabled bool `json:"enabled"`
	// Token is the Telegram bot token (never logged).
	Token      string           `json:"token,omitempty"`
	Chats      map[string]int64 `json:"chats,omitempty"`
	QueueSize  int              `json:"queue_size,omitempty"`
	RatePerSec int              `json:"rate_per_sec,omitempty"`
	RetryMax   int              `json:"retry_max,omitempty"`
	RetryBase  string           `json:"retry_base,omitempty"`
}

type GoogleCalendarConfig struct {
	Enabled         bool                `json:"enabled"`
	CredentialsFile string              `json:"credentials_file"`
	TokenFile       string              `json:"token_file"`
	Calendars       map[string][]string `json:"calendars"`
	Timeout         string              `json:"timeout,omitempty"`
}

// PprofConfig controls the optional profiling listener (hot-reloadable).
//
// Example:
//
//	"pprof": { "enabled": true, "addr": "127.0.0.1:6060" }
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token is required when Addr is not loopback.
	Token                string `json:"token,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
}
