package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	VenueKalshi     = "kalshi"
	VenuePolymarket = "polymarket"
	VenueSynthetic  = "synthetic"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all app configuration
type Config struct {
	Env string

	// Venue
	Venue                  string
	VenueAPIBase           string
	VenueMarketsAPIBase    string
	VenueAPIKey            string
	VenueRequireAuth       bool
	KnownExchangeContracts []string
	SettlementAssetID      string
	SettlementDecimals     int

	// Reconciliation window and output
	LookbackDays  int
	WeeklyRecords int
	FeeRate       *decimal.Decimal // nil disables revenue projection
	OutputPath    string

	// Fetching
	PageLimit         int
	MaxPages          int
	FetchMaxRetries   int
	FetchRetryBackoff time.Duration
	HTTPTimeout       time.Duration

	// Server
	HTTPPort string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse
	ClickhouseAddr     string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int

	// Kafka
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	KafkaBatchSize     int
	KafkaBatchTimeout  int // milliseconds
}

// LoadConfig loads configuration from environment variables, with optional .env file
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; a malformed one is not
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	venue := strings.ToLower(getEnv("VENUE", VenueKalshi))

	// malformed numbers and flags are collected and reported together
	var problems []string
	envInt := func(key string, defaultVal int) int {
		v, err := getEnvAsInt(key, defaultVal)
		if err != nil {
			problems = append(problems, err.Error())
		}
		return v
	}
	envBool := func(key string, defaultVal bool) bool {
		v, err := getEnvAsBool(key, defaultVal)
		if err != nil {
			problems = append(problems, err.Error())
		}
		return v
	}

	cfg := &Config{
		Env: getEnv("ENV", "prod"),

		// Venue
		Venue:                  venue,
		VenueAPIBase:           getEnv("VENUE_API_BASE", defaultAPIBase(venue)),
		VenueMarketsAPIBase:    getEnv("VENUE_MARKETS_API_BASE", defaultMarketsAPIBase(venue)),
		VenueAPIKey:            getEnv("VENUE_API_KEY", ""),
		VenueRequireAuth:       envBool("VENUE_REQUIRE_AUTH", false),
		KnownExchangeContracts: getEnvAsSlice("KNOWN_EXCHANGE_CONTRACTS", nil, ","),
		SettlementAssetID:      getEnv("SETTLEMENT_ASSET_ID", ""),
		SettlementDecimals:     envInt("SETTLEMENT_ASSET_DECIMALS", -1),

		// Reconciliation window and output
		LookbackDays:  envInt("LOOKBACK_DAYS", 90),
		WeeklyRecords: envInt("WEEKLY_RECORDS", 14),
		OutputPath:    getEnv("OUTPUT_PATH", venue+"_volume_data.json"),

		// Fetching
		PageLimit:         envInt("PAGE_LIMIT", 0),
		MaxPages:          envInt("MAX_PAGES", 100),
		FetchMaxRetries:   envInt("FETCH_MAX_RETRIES", 3),
		FetchRetryBackoff: time.Duration(envInt("FETCH_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
		HTTPTimeout:       time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,

		// Server
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		// ClickHouse
		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  envInt("CLICKHOUSE_TIMEOUT", 10),

		// Kafka
		KafkaBrokers:       getEnvAsSlice("KAFKA_BROKERS", nil, ","),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "volume-reports"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "volume-report-server"),
		KafkaBatchSize:     envInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout:  envInt("KAFKA_BATCH_TIMEOUT", 3000),
	}

	feeRate, err := getEnvAsDecimal("FEE_RATE", "0.01")
	if err != nil {
		problems = append(problems, fmt.Sprintf("FEE_RATE: %v", err))
	}
	cfg.FeeRate = feeRate

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration before any fetch starts
func (c *Config) Validate() error {
	var problems []string

	switch c.Venue {
	case VenueKalshi, VenuePolymarket, VenueSynthetic:
	default:
		problems = append(problems, fmt.Sprintf("unknown VENUE %q", c.Venue))
	}
	if c.VenueRequireAuth && strings.TrimSpace(c.VenueAPIKey) == "" {
		problems = append(problems, "VENUE_API_KEY is required when VENUE_REQUIRE_AUTH is set")
	}
	if c.Venue != VenueSynthetic && c.VenueAPIBase == "" {
		problems = append(problems, "VENUE_API_BASE is empty")
	}
	if c.LookbackDays <= 0 {
		problems = append(problems, "LOOKBACK_DAYS must be positive")
	}
	if c.WeeklyRecords <= 0 {
		problems = append(problems, "WEEKLY_RECORDS must be positive")
	}
	if c.FeeRate != nil && c.FeeRate.IsNegative() {
		problems = append(problems, "FEE_RATE must not be negative")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		problems = append(problems, "OUTPUT_PATH is empty")
	}
	if c.MaxPages <= 0 {
		problems = append(problems, "MAX_PAGES must be positive")
	}
	if c.FetchMaxRetries < 0 {
		problems = append(problems, "FETCH_MAX_RETRIES must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Lookback returns the lookback window as a duration
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

func defaultAPIBase(venue string) string {
	switch venue {
	case VenueKalshi:
		return "https://api.elections.kalshi.com/trade-api/v2"
	case VenuePolymarket:
		return "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/orderbook-subgraph/0.0.1/gn"
	}
	return ""
}

func defaultMarketsAPIBase(venue string) string {
	switch venue {
	case VenueKalshi:
		return "https://api.elections.kalshi.com/trade-api/v2"
	case VenuePolymarket:
		return "https://gamma-api.polymarket.com"
	}
	return ""
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvAsInt returns defaultVal when the variable is unset or empty, and an
// error when it is set to something that is not an integer.
func getEnvAsInt(key string, defaultVal int) (int, error) {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not an integer", key, valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultVal bool) (bool, error) {
	valStr := strings.TrimSpace(getEnv(key, ""))
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not a boolean", key, valStr)
	}
	return val, nil
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDecimal returns nil when the value is empty or "none"
func getEnvAsDecimal(key, defaultVal string) (*decimal.Decimal, error) {
	valStr := strings.TrimSpace(getEnv(key, defaultVal))
	if valStr == "" || strings.EqualFold(valStr, "none") {
		return nil, nil
	}
	d, err := decimal.NewFromString(valStr)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
