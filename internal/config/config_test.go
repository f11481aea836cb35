package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/sensoredit/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sensoredit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	l, err := config.NewLoader(writeConfig(t, t.TempDir(), "log:\n  level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()
	if cfg.Server.Addr != ":8080" || cfg.Storage.Backend != "file" || cfg.Storage.Dir != "data" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Retry.Interval() != 5*time.Second || cfg.Retry.MaxAttempts != 3 || cfg.Ready.Timeout() != 30*time.Second {
		t.Errorf("retry defaults = %+v / %+v", cfg.Retry, cfg.Ready)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestShippedConfigValidates(t *testing.T) {
	l, err := config.NewLoader("../../configs/sensoredit.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Validate(l.Config()); err != nil {
		t.Errorf("shipped config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Server:  config.ServerConf{Addr: ":9000"},
			Log:     config.LogConf{Level: "info"},
			Storage: config.StorageConf{Backend: "file", Dir: "/tmp/x"},
			Retry:   config.RetryConf{IntervalMs: 100, MaxAttempts: 2},
			Ready:   config.RetryConf{IntervalMs: 100, TimeoutMs: 1000},
		}
	}
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string // substring of the error, "" for valid
	}{
		{"valid", func(*config.Config) {}, ""},
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"redis needs addr", func(c *config.Config) { c.Storage.Backend = "redis" }, "redis_addr"},
		{"redis ok", func(c *config.Config) {
			c.Storage.Backend, c.Storage.RedisAddr = "redis", "localhost:6379"
		}, ""},
		{"mqtt client id", func(c *config.Config) { c.MQTT.Broker = "tcp://b:1883" }, "mqtt.client_id"},
		{"unbounded retry", func(c *config.Config) { c.Retry.MaxAttempts = 0 }, "retry: one of"},
		{"zero interval", func(c *config.Config) { c.Ready.IntervalMs = 0 }, "ready.interval_ms"},
		{"negative", func(c *config.Config) { c.Retry.TimeoutMs = -1 }, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := config.Validate(c)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	err := config.Validate(&config.Config{})
	if err == nil {
		t.Fatal("empty config accepted")
	}
	if n := strings.Count(err.Error(), "\n  - "); n < 4 {
		t.Errorf("only %d problems reported:\n%v", n, err)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log:\n  level: info\n")
	l, err := config.NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	var seen []string
	l.OnChange(func(c *config.Config) { seen = append(seen, c.Log.Level) })

	writeConfig(t, dir, "log:\n  level: warn\n")
	if _, err := l.Reload(); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "log:\n  level: shouting\n")
	if _, err := l.Reload(); err == nil {
		t.Error("invalid config accepted")
	}
	writeConfig(t, dir, "log: [")
	if _, err := l.Reload(); err == nil {
		t.Error("unparsable config accepted")
	}

	if got := l.Config().Log.Level; got != "warn" {
		t.Errorf("level in use = %q, want warn", got)
	}
	if strings.Join(seen, ",") != "warn" {
		t.Errorf("listeners saw %v", seen)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log:\n  level: info\n")
	l, err := config.NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	changed := make(chan string, 8)
	l.OnChange(func(c *config.Config) { changed <- c.Log.Level })
	stop, err := l.Watch()
	if err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	defer stop()

	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "log:\n  level: error\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case lvl := <-changed:
			if lvl == "error" {
				return
			}
		case <-deadline:
			t.Fatalf("change not picked up; level %q", l.Config().Log.Level)
		}
	}
}
