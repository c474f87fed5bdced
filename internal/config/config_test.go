package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "SIM", cfg.MarketID)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 32768, cfg.EngineBuffer)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "100", cfg.Agents.CenterPrice.String())
	assert.Equal(t, "0.005", cfg.Agents.Deviance.String())
	assert.Equal(t, time.Second, cfg.Agents.MinInterval)
	assert.Equal(t, 3*time.Second, cfg.Agents.MaxInterval)
	assert.True(t, cfg.SeedBook)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MARKET_ID", "ACME")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENGINE_BUFFER", "64")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("RELAY_INTERVAL", "1s")
	t.Setenv("AGENT_COUNT", "3")
	t.Setenv("AGENT_CENTER_PRICE", "250.5")
	t.Setenv("AGENT_MIN_INTERVAL", "10ms")
	t.Setenv("AGENT_MAX_INTERVAL", "20ms")
	t.Setenv("SEED_BOOK", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ACME", cfg.MarketID)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 64, cfg.EngineBuffer)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, time.Second, cfg.Clearing.RelayInterval)
	assert.Equal(t, 3, cfg.Agents.Count)
	assert.Equal(t, "250.5", cfg.Agents.CenterPrice.String())
	assert.False(t, cfg.SeedBook)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"ENGINE_BUFFER":      "lots",
		"RELAY_INTERVAL":     "soon",
		"AGENT_COUNT":        "x",
		"AGENT_CENTER_PRICE": "-1",
		"SEED_BOOK":          "maybe",
		"LOG_LEVEL":          "loud",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("interval order", func(t *testing.T) {
		t.Setenv("AGENT_MIN_INTERVAL", "5s")
		t.Setenv("AGENT_MAX_INTERVAL", "1s")
		_, err := Load()
		assert.ErrorContains(t, err, "AGENT_MAX_INTERVAL")
	})
}
