// Package config carries service configuration: timing values for the
// lifecycle state machine, the listen address and auth settings. Defaults
// are merged with SAPD_* environment overrides and an optional sapd.yaml.
package config

import (
	"fmt"
	"time"
)

// Timing groups every duration the state machine schedules on.
type Timing struct {
	// CountryCodeChangeTimeout bounds the wait for a driver country-code
	// confirmation during start negotiation.
	CountryCodeChangeTimeout time.Duration `yaml:"countryCodeChangeTimeout"`

	// PendingDisconnectRetryInterval is the cadence for re-issuing a
	// forced disconnect that has not been confirmed yet.
	PendingDisconnectRetryInterval time.Duration `yaml:"pendingDisconnectRetryInterval"`

	// DefaultShutdownTimeout applies when auto shutdown is enabled and
	// the operator did not pick a timeout.
	DefaultShutdownTimeout time.Duration `yaml:"defaultShutdownTimeout"`

	// DefaultBridgedIdleTimeout is the per-instance idle timeout for
	// bridged legs when the operator did not pick one.
	DefaultBridgedIdleTimeout time.Duration `yaml:"defaultBridgedIdleTimeout"`

	// BridgedIdleStaggerOffset delays the lower-frequency instance's idle
	// timer so the higher band always goes first.
	BridgedIdleStaggerOffset time.Duration `yaml:"bridgedIdleStaggerOffset"`

	// DisableBridgedIdleWhenPlugged exempts bridged idle timers while the
	// device reports external power.
	DisableBridgedIdleWhenPlugged bool `yaml:"disableBridgedIdleWhenPlugged"`

	CommandQueueSize int `yaml:"commandQueueSize"`

	// WorldModeCountryCode is the wildcard regulatory domain under which
	// bridged operation is not attempted.
	WorldModeCountryCode string `yaml:"worldModeCountryCode"`

	// HeartbeatInterval paces telemetry keepalive events.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// Config is the full service configuration.
type Config struct {
	Listen string `yaml:"listen"`

	Auth struct {
		// Secret signs and verifies HS256 bearer tokens. Empty disables
		// auth (tests, local runs).
		Secret string `yaml:"secret"`
	} `yaml:"auth"`

	Driver struct {
		// Kind selects the driver backend; "fake" is the only in-tree one.
		Kind string `yaml:"kind"`

		// ErrorTable picks the token table for error normalization.
		ErrorTable string `yaml:"errorTable"`
	} `yaml:"driver"`

	Timing Timing `yaml:"timing"`
}

// Baseline returns the built-in defaults.
func Baseline() *Config {
	cfg := &Config{Listen: ":8095"}
	cfg.Driver.Kind = "fake"
	cfg.Driver.ErrorTable = "hostapd"
	cfg.Timing = Timing{
		CountryCodeChangeTimeout:       5 * time.Second,
		PendingDisconnectRetryInterval: 1 * time.Second,
		DefaultShutdownTimeout:         10 * time.Minute,
		DefaultBridgedIdleTimeout:      5 * time.Minute,
		BridgedIdleStaggerOffset:       10 * time.Millisecond,
		DisableBridgedIdleWhenPlugged:  true,
		CommandQueueSize:               64,
		WorldModeCountryCode:           "00",
		HeartbeatInterval:              15 * time.Second,
	}
	return cfg
}

// Validate rejects configurations the daemon cannot run on.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	t := c.Timing
	if t.CountryCodeChangeTimeout <= 0 {
		return fmt.Errorf("countryCodeChangeTimeout must be positive, got %v", t.CountryCodeChangeTimeout)
	}
	if t.PendingDisconnectRetryInterval <= 0 {
		return fmt.Errorf("pendingDisconnectRetryInterval must be positive, got %v", t.PendingDisconnectRetryInterval)
	}
	if t.DefaultShutdownTimeout <= 0 {
		return fmt.Errorf("defaultShutdownTimeout must be positive, got %v", t.DefaultShutdownTimeout)
	}
	if t.DefaultBridgedIdleTimeout <= 0 {
		return fmt.Errorf("defaultBridgedIdleTimeout must be positive, got %v", t.DefaultBridgedIdleTimeout)
	}
	if t.BridgedIdleStaggerOffset < 0 {
		return fmt.Errorf("bridgedIdleStaggerOffset must not be negative, got %v", t.BridgedIdleStaggerOffset)
	}
	if t.CommandQueueSize <= 0 {
		return fmt.Errorf("commandQueueSize must be positive, got %d", t.CommandQueueSize)
	}
	return nil
}
