package pulse

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := GetStreamConfig()
	assert.NilError(t, err)
	assert.Equal(t, "stream", cfg.StreamNamespace)
	assert.Equal(t, "4040", cfg.StreamPort)
	assert.Equal(t, 4, cfg.StreamChannels)
	assert.Equal(t, 10.0, cfg.StreamDurationSeconds)
	assert.Equal(t, 256.0, cfg.StreamNominalRate)
	assert.Equal(t, 100, cfg.TickIntervalMillis)
	assert.Equal(t, "", cfg.RedisAddress)
}

func TestConfigReadsEnvironment(t *testing.T) {
	t.Setenv("STREAM_NAMESPACE", "ecg-ward-7")
	t.Setenv("STREAM_CHANNELS", "8")
	t.Setenv("STREAM_NOMINAL_RATE", "2048")
	t.Setenv("STREAM_DURATION_SECONDS", "2.5")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("TICK_INTERVAL_MILLIS", "50")

	cfg, err := GetStreamConfig()
	assert.NilError(t, err)
	assert.Equal(t, "ecg-ward-7", cfg.StreamNamespace)
	assert.Equal(t, 8, cfg.StreamChannels)
	assert.Equal(t, 2048.0, cfg.StreamNominalRate)
	assert.Equal(t, 2.5, cfg.StreamDurationSeconds)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, 50, cfg.TickIntervalMillis)

	// Unset fields keep their defaults.
	assert.Equal(t, "4040", cfg.StreamPort)
}
