package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
channel_size: 64
sleep_on_shutdown: 50ms
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 64, cfg.ChannelSize)
	require.Equal(t, 50*time.Millisecond, cfg.SleepOnShutdown)

	// Fields the file doesn't mention fall back to DefaultConfig.
	defaults := DefaultConfig()
	require.Equal(t, defaults.MaxEventsPerTick, cfg.MaxEventsPerTick)
	require.Equal(t, defaults.MaintenanceInterval, cfg.MaintenanceInterval)
	require.Equal(t, defaults.MonitoringChannelSize, cfg.MonitoringChannelSize)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadConfigMalformedYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channel_size: [not-an-int"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestConfigWithersAreIndependentCopies(t *testing.T) {
	base := DefaultConfig()

	derived := base.
		WithChannelSize(999).
		WithMaxEventsPerTick(5).
		WithMaintenanceInterval(2 * time.Second).
		WithMonitoringChannelSize(16).
		WithSleepOnShutdown(time.Minute)

	require.Equal(t, 999, derived.ChannelSize)
	require.Equal(t, 5, derived.MaxEventsPerTick)
	require.Equal(t, 2*time.Second, derived.MaintenanceInterval)
	require.Equal(t, 16, derived.MonitoringChannelSize)
	require.Equal(t, time.Minute, derived.SleepOnShutdown)

	// The original, untouched default is unaffected.
	require.Equal(t, DefaultConfig(), base)
}
