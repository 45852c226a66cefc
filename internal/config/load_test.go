package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineIsValid(t *testing.T) {
	cfg := Baseline()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Timing.CountryCodeChangeTimeout)
	assert.Equal(t, time.Second, cfg.Timing.PendingDisconnectRetryInterval)
	assert.Equal(t, "00", cfg.Timing.WorldModeCountryCode)
}

func TestLoadMissingDefaultFileUsesBaseline(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Baseline().Listen, cfg.Listen)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sapd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
driver:
  kind: fake
  errorTable: generic
timing:
  countryCodeChangeTimeout: 2s
  commandQueueSize: 16
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "generic", cfg.Driver.ErrorTable)
	assert.Equal(t, 2*time.Second, cfg.Timing.CountryCodeChangeTimeout)
	assert.Equal(t, 16, cfg.Timing.CommandQueueSize)
	// Untouched values stay at baseline.
	assert.Equal(t, time.Second, cfg.Timing.PendingDisconnectRetryInterval)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sapd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o644))

	t.Setenv("SAPD_LISTEN", ":9100")
	t.Setenv("SAPD_TIMING_COUNTRY_CODE_TIMEOUT", "3s")
	t.Setenv("SAPD_TIMING_DISABLE_BRIDGED_IDLE_WHEN_PLUGGED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, 3*time.Second, cfg.Timing.CountryCodeChangeTimeout)
	assert.False(t, cfg.Timing.DisableBridgedIdleWhenPlugged)
}

func TestValidateRejectsBadTiming(t *testing.T) {
	cfg := Baseline()
	cfg.Timing.CountryCodeChangeTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Baseline()
	cfg.Timing.CommandQueueSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Baseline()
	cfg.Listen = ""
	assert.Error(t, cfg.Validate())

	cfg = Baseline()
	cfg.Timing.BridgedIdleStaggerOffset = -time.Millisecond
	assert.Error(t, cfg.Validate())
}
