package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - A known storage backend and the settings it needs
//   - A known log level
//   - Retry policies that are bounded
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}

	switch cfg.Storage.Backend {
	case "file":
		if cfg.Storage.Dir == "" {
			errs = append(errs, "storage.dir is required for the file backend")
		}
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			errs = append(errs, "storage.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q must be file or redis", cfg.Storage.Backend))
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required when mqtt.broker is set")
	}

	validateRetry("retry", cfg.Retry, &errs)
	validateRetry("ready", cfg.Ready, &errs)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateRetry(name string, r RetryConf, errs *[]string) {
	if r.IntervalMs <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s.interval_ms must be positive", name))
	}
	if r.TimeoutMs < 0 || r.MaxAttempts < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: limits must not be negative", name))
	}
	if r.TimeoutMs == 0 && r.MaxAttempts == 0 {
		*errs = append(*errs, fmt.Sprintf("%s: one of timeout_ms or max_attempts must be set", name))
	}
}
