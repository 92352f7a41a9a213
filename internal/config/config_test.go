package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"novacal/internal/schedule"
)

const sampleYAML = `
http:
  address: "127.0.0.1:9090"
  rate_per_minute: 30
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./novacal.db
  busy_timeout: 5s
schedule:
  timezone: Europe/Berlin
  day_start: "09:00"
  day_end: "18:30"
  max_batch: 50
auth:
  tokens:
    secret-1: alice
sweep:
  enabled: true
  schedule: 15m
notifier:
  enabled: true
  token: "123:abc"
  chats:
    alice: 42
google_calendar:
  enabled: false
  credentials_file: creds.json
  token_file: token.json
  calendars:
    alice: [primary]
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("novacal.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.HTTP.Address != "127.0.0.1:9090" || cfg.Storage.Driver != "sqlite" || cfg.Schedule.MaxBatch != 50 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Auth.Tokens["secret-1"] != "alice" || cfg.Notifier.Chats["alice"] != 42 {
		t.Fatalf("maps not decoded: %+v %+v", cfg.Auth, cfg.Notifier)
	}
	if cfg.GoogleCalendar == nil || cfg.GoogleCalendar.Calendars["alice"][0] != "primary" {
		t.Fatalf("google_calendar = %+v", cfg.GoogleCalendar)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		data string
	}{
		{"unknown json key", "c.json", `{"http":{"address":"x"},"plugins":{}}`},
		{"unknown yaml key", "c.yml", "schedule:\n  timezon: UTC\n"},
		{"trailing data", "c.json", `{} {}`},
		{"bad yaml", "c.yaml", "http: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.path, []byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero config is valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.path"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"bad clock", func(c *Config) { c.Schedule.DayStart = "25:00" }, "schedule.day_start"},
		{"inverted day", func(c *Config) { c.Schedule.DayStart, c.Schedule.DayEnd = "18:00", "09:00" }, "day_end"},
		{"bad duration", func(c *Config) { c.Sweep.Timeout = "soon" }, "sweep.timeout"},
		{"notifier without token", func(c *Config) { c.Notifier.Enabled = true }, "notifier.token"},
		{"gcal without files", func(c *Config) { c.GoogleCalendar = &GoogleCalendarConfig{Enabled: true} }, "google_calendar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestScheduleConfigResolution(t *testing.T) {
	t.Parallel()
	h, err := ScheduleConfig{}.DefaultHours()
	if err != nil || h != schedule.DefaultDayHours {
		t.Fatalf("default hours = %+v, %v", h, err)
	}
	h, err = ScheduleConfig{DayStart: "07:30"}.DefaultHours()
	if err != nil || h.Start != (schedule.Clock{Hour: 7, Minute: 30}) || h.End != schedule.DefaultDayHours.End {
		t.Fatalf("partial hours = %+v, %v", h, err)
	}
	loc, err := ScheduleConfig{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("location = %v, %v", loc, err)
	}
	if got := (SweepConfig{}).SweepSchedule(); got != defaultSweepSchedule {
		t.Fatalf("sweep default = %q", got)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("empty = %s, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("set = %s, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative accepted")
	}
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	old := &Config{Notifier: NotifierConfig{Token: "a"}}
	cur := &Config{Notifier: NotifierConfig{Token: "b"}, Sweep: SweepConfig{Enabled: true}}
	changed, fields := SummarizeChange(old, cur)
	if strings.Join(changed, ",") != "sweep,notifier" {
		t.Fatalf("changed = %v", changed)
	}
	if len(fields) == 0 {
		t.Fatal("no fields")
	}
	if c, _ := SummarizeChange(cur, cur); len(c) != 0 {
		t.Fatalf("identical configs reported %v", c)
	}
}

func TestWatchPublishesValidReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novacal.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	write := func(body string) {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	// The watcher may not be registered yet; rewrite until a publish arrives.
	invalid := `{"storage":{"driver":"postgres"}}`
	valid := `{"logging":{"level":"debug"}}`
	write(invalid)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Storage.Driver == "postgres" {
				t.Fatal("invalid config published")
			}
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level %q", cfg.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatal("published config not committed")
			}
			return
		case <-tick.C:
			write(valid)
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
}
