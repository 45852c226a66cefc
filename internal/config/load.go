package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is consulted when no explicit path is given.
const DefaultFile = "sapd.yaml"

// Load merges Baseline() + SAPD_* environment overrides + the optional
// YAML file at path (DefaultFile when path is empty; a missing default
// file is not an error).
func Load(path string) (*Config, error) {
	cfg := Baseline()

	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SAPD_* environment variables on top of the
// current values. Environment wins over file so deployments can pin
// individual values without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAPD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SAPD_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("SAPD_DRIVER_KIND"); v != "" {
		cfg.Driver.Kind = v
	}
	if v := os.Getenv("SAPD_DRIVER_ERROR_TABLE"); v != "" {
		cfg.Driver.ErrorTable = v
	}

	overrideDuration("SAPD_TIMING_COUNTRY_CODE_TIMEOUT", &cfg.Timing.CountryCodeChangeTimeout)
	overrideDuration("SAPD_TIMING_PENDING_DISCONNECT_RETRY", &cfg.Timing.PendingDisconnectRetryInterval)
	overrideDuration("SAPD_TIMING_DEFAULT_SHUTDOWN_TIMEOUT", &cfg.Timing.DefaultShutdownTimeout)
	overrideDuration("SAPD_TIMING_DEFAULT_BRIDGED_IDLE_TIMEOUT", &cfg.Timing.DefaultBridgedIdleTimeout)
	overrideDuration("SAPD_TIMING_BRIDGED_IDLE_STAGGER_OFFSET", &cfg.Timing.BridgedIdleStaggerOffset)
	overrideDuration("SAPD_TIMING_HEARTBEAT_INTERVAL", &cfg.Timing.HeartbeatInterval)

	if v := os.Getenv("SAPD_TIMING_COMMAND_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timing.CommandQueueSize = n
		}
	}
	if v := os.Getenv("SAPD_TIMING_DISABLE_BRIDGED_IDLE_WHEN_PLUGGED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Timing.DisableBridgedIdleWhenPlugged = b
		}
	}
	if v := os.Getenv("SAPD_TIMING_WORLD_MODE_COUNTRY"); v != "" {
		cfg.Timing.WorldModeCountryCode = v
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
