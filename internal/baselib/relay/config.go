package relay

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the runtime tuneables for a Supervisor and its Broker.
// Zero-value Config is not valid; use DefaultConfig or LoadConfig.
type Config struct {
	// ChannelSize is the buffer capacity of the shared inbound channel
	// actors use to emit events to the broker, and the default mailbox
	// capacity for each registered subscriber.
	ChannelSize int `yaml:"channel_size"`

	// MaxEventsPerTick bounds how many mailbox events an actor's
	// controller will drain in a single wakeup before yielding back to
	// the select loop, preventing one busy actor from starving its own
	// step/backoff scheduling.
	MaxEventsPerTick int `yaml:"max_events_per_tick"`

	// MaintenanceInterval is how often the broker sweeps its subscriber
	// list for closed mailboxes.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`

	// MonitoringChannelSize is the buffer capacity of the monitor
	// dispatcher's command channel.
	MonitoringChannelSize int `yaml:"monitoring_channel_size"`

	// SleepOnShutdown bounds how long the broker waits, during shutdown,
	// for actor mailboxes to drain before it cancels unconditionally.
	SleepOnShutdown time.Duration `yaml:"sleep_on_shutdown"`
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		ChannelSize:           128,
		MaxEventsPerTick:      10,
		MaintenanceInterval:   time.Second,
		MonitoringChannelSize: 1024,
		SleepOnShutdown:       10 * time.Millisecond,
	}
}

// WithChannelSize returns a copy of the config with ChannelSize set.
func (c Config) WithChannelSize(size int) Config {
	c.ChannelSize = size
	return c
}

// WithMaxEventsPerTick returns a copy of the config with MaxEventsPerTick
// set.
func (c Config) WithMaxEventsPerTick(limit int) Config {
	c.MaxEventsPerTick = limit
	return c
}

// WithMaintenanceInterval returns a copy of the config with
// MaintenanceInterval set.
func (c Config) WithMaintenanceInterval(d time.Duration) Config {
	c.MaintenanceInterval = d
	return c
}

// WithMonitoringChannelSize returns a copy of the config with
// MonitoringChannelSize set.
func (c Config) WithMonitoringChannelSize(size int) Config {
	c.MonitoringChannelSize = size
	return c
}

// WithSleepOnShutdown returns a copy of the config with SleepOnShutdown set.
func (c Config) WithSleepOnShutdown(d time.Duration) Config {
	c.SleepOnShutdown = d
	return c
}

// LoadConfig reads a YAML document from path and overlays it onto
// DefaultConfig, so a file only needs to specify the fields it overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
