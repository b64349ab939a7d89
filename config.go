package pulse

import (
	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// StreamConfig is loaded from the environment. PascalCase fields match SNAKE_CASE environment
// variables; the config tags pin the exact names.
type StreamConfig struct {
	RedisAddress  string `config:"REDIS_ADDRESS"`
	RedisPassword string `config:"REDIS_PASSWORD"`

	StreamNamespace string `config:"STREAM_NAMESPACE"`
	StreamPort      string `config:"STREAM_PORT"`

	StreamChannels        int     `config:"STREAM_CHANNELS"`
	StreamDurationSeconds float64 `config:"STREAM_DURATION_SECONDS"`
	StreamNominalRate     float64 `config:"STREAM_NOMINAL_RATE"`

	TickIntervalMillis int `config:"TICK_INTERVAL_MILLIS"`

	StatsdAddress   string `config:"STATSD_ADDRESS"`
	TraceEnabled    bool   `config:"TRACE_ENABLED"`
	ProfilerEnabled bool   `config:"PROFILER_ENABLED"`
}

func defaultStreamConfig() StreamConfig {
	return StreamConfig{
		StreamNamespace:       "stream",
		StreamPort:            "4040",
		StreamChannels:        4,
		StreamDurationSeconds: 10,
		StreamNominalRate:     256,
		TickIntervalMillis:    100,
	}
}

// GetStreamConfig loads the stream configuration from the environment, filling anything unset
// with the defaults above.
func GetStreamConfig() (StreamConfig, error) {
	cfg := defaultStreamConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load stream config from environment")
	}
	return cfg, nil
}
