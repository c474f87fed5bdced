package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultMarketID       = "SIM"
	defaultLogLevel       = "info"
	defaultEngineBuffer   = 32768
	defaultGRPCAddr       = ":9090"
	defaultHTTPAddr       = ":8080"
	defaultOrderTopic     = "marketsim.orders"
	defaultClearingTopic  = "marketsim.clearing"
	defaultGroupID        = "marketsim-engine"
	defaultOutboxDir      = "data/outbox"
	defaultRelayInterval  = 250 * time.Millisecond
	defaultAgentCount     = 10
	defaultCenterPrice    = "100"
	defaultDeviance       = "0.005"
	defaultMinInterval    = time.Second
	defaultMaxInterval    = 3 * time.Second
	defaultShutdownPeriod = 10 * time.Second
)

// Config keeps the runtime configuration for the simulator.
type Config struct {
	MarketID        string
	LogLevel        slog.Level
	EngineBuffer    int
	GRPCAddr        string
	HTTPAddr        string
	Kafka           KafkaConfig
	Clearing        ClearingConfig
	Agents          AgentConfig
	SeedBook        bool
	ShutdownTimeout time.Duration
}

// KafkaConfig is empty-Brokers when the bus is disabled.
type KafkaConfig struct {
	Brokers       []string
	OrderTopic    string
	ClearingTopic string
	GroupID       string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ClearingConfig struct {
	OutboxDir     string
	RelayInterval time.Duration
}

type AgentConfig struct {
	Count       int
	CenterPrice decimal.Decimal
	Deviance    decimal.Decimal
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	level, err := getLevel("LOG_LEVEL", defaultLogLevel)
	if err != nil {
		return nil, err
	}

	buffer, err := getInt("ENGINE_BUFFER", defaultEngineBuffer)
	if err != nil {
		return nil, fmt.Errorf("parse ENGINE_BUFFER: %w", err)
	}
	if buffer <= 0 {
		return nil, fmt.Errorf("ENGINE_BUFFER must be positive, got %d", buffer)
	}

	relayInterval, err := getDuration("RELAY_INTERVAL", defaultRelayInterval)
	if err != nil {
		return nil, fmt.Errorf("parse RELAY_INTERVAL: %w", err)
	}

	agentCount, err := getInt("AGENT_COUNT", defaultAgentCount)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_COUNT: %w", err)
	}

	center, err := getDecimal("AGENT_CENTER_PRICE", defaultCenterPrice)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_CENTER_PRICE: %w", err)
	}
	if !center.IsPositive() {
		return nil, fmt.Errorf("AGENT_CENTER_PRICE must be positive, got %s", center)
	}

	deviance, err := getDecimal("AGENT_DEVIANCE", defaultDeviance)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_DEVIANCE: %w", err)
	}

	minInterval, err := getDuration("AGENT_MIN_INTERVAL", defaultMinInterval)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_MIN_INTERVAL: %w", err)
	}
	maxInterval, err := getDuration("AGENT_MAX_INTERVAL", defaultMaxInterval)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_MAX_INTERVAL: %w", err)
	}
	if maxInterval < minInterval {
		return nil, fmt.Errorf("AGENT_MAX_INTERVAL %s is below AGENT_MIN_INTERVAL %s", maxInterval, minInterval)
	}

	seed, err := getBool("SEED_BOOK", true)
	if err != nil {
		return nil, fmt.Errorf("parse SEED_BOOK: %w", err)
	}

	shutdown, err := getDuration("SHUTDOWN_TIMEOUT", defaultShutdownPeriod)
	if err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		MarketID:     getString("MARKET_ID", defaultMarketID),
		LogLevel:     level,
		EngineBuffer: buffer,
		GRPCAddr:     getString("GRPC_ADDR", defaultGRPCAddr),
		HTTPAddr:     getString("HTTP_ADDR", defaultHTTPAddr),
		Kafka: KafkaConfig{
			Brokers:       getList("KAFKA_BROKERS"),
			OrderTopic:    getString("KAFKA_ORDER_TOPIC", defaultOrderTopic),
			ClearingTopic: getString("KAFKA_CLEARING_TOPIC", defaultClearingTopic),
			GroupID:       getString("KAFKA_GROUP_ID", defaultGroupID),
		},
		Clearing: ClearingConfig{
			OutboxDir:     getString("OUTBOX_DIR", defaultOutboxDir),
			RelayInterval: relayInterval,
		},
		Agents: AgentConfig{
			Count:       agentCount,
			CenterPrice: center,
			Deviance:    deviance,
			MinInterval: minInterval,
			MaxInterval: maxInterval,
		},
		SeedBook:        seed,
		ShutdownTimeout: shutdown,
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	value := getString(key, fallback)
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s value %q to decimal: %w", key, value, err)
	}
	return parsed, nil
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	value := getString(key, "")
	if value == "" {
		return nil
	}

	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func getLevel(key, fallback string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getString(key, fallback))); err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return level, nil
}
