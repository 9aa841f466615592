package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, "app:\n  name: stockwatcher\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scheduler.CheckInterval != time.Hour {
		t.Fatalf("check_interval = %s, want 1h", cfg.Scheduler.CheckInterval)
	}
	if !cfg.Scheduler.AlignToInterval {
		t.Fatal("align_to_interval should default on")
	}
	if cfg.Scheduler.ActiveHours.Start != 9 || cfg.Scheduler.ActiveHours.End != 18 {
		t.Fatalf("active_hours = %+v, want 9-18", cfg.Scheduler.ActiveHours)
	}
	if cfg.Scheduler.Timezone != "America/New_York" {
		t.Fatalf("timezone = %s", cfg.Scheduler.Timezone)
	}
	if cfg.Pricing.BaseURL != "https://query1.finance.yahoo.com" {
		t.Fatalf("pricing base_url = %s", cfg.Pricing.BaseURL)
	}
	if cfg.Alerting.RetryCount != 3 || cfg.Alerting.RetryBackoff != 2*time.Second {
		t.Fatalf("alerting retry defaults off: %+v", cfg.Alerting)
	}
	if cfg.Export.MaxDataPoints != 100000 {
		t.Fatalf("export.max_data_points = %d", cfg.Export.MaxDataPoints)
	}

	days, err := cfg.ActiveWeekdays()
	if err != nil {
		t.Fatalf("ActiveWeekdays: %v", err)
	}
	if len(days) != 5 || days[time.Saturday] || !days[time.Wednesday] {
		t.Fatalf("default weekdays wrong: %v", days)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
scheduler:
  check_interval: 15m
  active_days: [Sat, Sun]
  timezone: UTC
alerting:
  retry_count: 1
  telegram:
    enabled: true
    bot_token: tok
    chat_id: "99"
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scheduler.CheckInterval != 15*time.Minute {
		t.Fatalf("check_interval = %s, want 15m", cfg.Scheduler.CheckInterval)
	}
	days, err := cfg.ActiveWeekdays()
	if err != nil {
		t.Fatalf("ActiveWeekdays: %v", err)
	}
	if !days[time.Saturday] || !days[time.Sunday] || days[time.Monday] {
		t.Fatalf("weekday override wrong: %v", days)
	}
	loc, err := cfg.SchedulerLocation()
	if err != nil || loc != time.UTC {
		t.Fatalf("location = %v, %v", loc, err)
	}
	if got := cfg.EnabledChannels(); len(got) != 1 || got[0] != "telegram" {
		t.Fatalf("enabled channels = %v", got)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"zero interval",
			"scheduler:\n  check_interval: 0s\n",
			"check_interval",
		},
		{
			"bad weekday",
			"scheduler:\n  active_days: [Funday]\n",
			"unknown weekday",
		},
		{
			"bad timezone",
			"scheduler:\n  timezone: Mars/Olympus\n",
			"timezone",
		},
		{
			"hour out of range",
			"scheduler:\n  active_hours:\n    start: 25\n",
			"active_hours.start",
		},
		{
			"negative retry count",
			"alerting:\n  retry_count: -1\n",
			"retry_count",
		},
		{
			"telegram enabled without token",
			"alerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
			"bot_token",
		},
		{
			"email enabled without recipient",
			"alerting:\n  email:\n    enabled: true\n    from: a@b.c\n",
			"recipient",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tc.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestActiveWeekdaysEmptyMeansEveryDay(t *testing.T) {
	cfg := &Config{}
	days, err := cfg.ActiveWeekdays()
	if err != nil {
		t.Fatalf("ActiveWeekdays: %v", err)
	}
	if days != nil {
		t.Fatalf("empty list should yield nil set, got %v", days)
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("default = %d, want 500", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("override = %d, want 42", got)
	}
}
