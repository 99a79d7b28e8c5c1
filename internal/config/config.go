package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	DataPath                    string  `env:"DATA_PATH"`
	BenchmarkPath               string  `env:"BENCHMARK_PATH"`
	RiskFreeRate                float64 `env:"RISK_FREE_RATE" envDefault:"0.01"`
	PeriodsPerYear              int     `env:"PERIODS_PER_YEAR" envDefault:"252"`
	TrainWindow                 int     `env:"TRAIN_WINDOW" envDefault:"252"`
	RebalancePeriod             int     `env:"REBALANCE_PERIOD" envDefault:"63"`
	TransactionCost             float64 `env:"TRANSACTION_COST" envDefault:"0.001"`
	Strategy                    string  `env:"STRATEGY" envDefault:"max_sharpe"`
	SensitivityTrainWindows     []int   `env:"SENSITIVITY_TRAIN_WINDOWS" envDefault:"252,126"`
	SensitivityRebalancePeriods []int   `env:"SENSITIVITY_REBALANCE_PERIODS" envDefault:"63,21"`
	RandomPortfolios            int     `env:"RANDOM_PORTFOLIOS" envDefault:"5000"`
	RandomSeed                  int64   `env:"RANDOM_SEED" envDefault:"42"`
	Workers                     int     `env:"WORKERS" envDefault:"0"` // 0 means GOMAXPROCS
	OutputDir                   string  `env:"OUTPUT_DIR" envDefault:"output"`
	LogLevel                    string  `env:"LOG_LEVEL" envDefault:"info"`
	OpenAIAPIKey                string  `env:"OPENAI_API_KEY"`
	OpenAIModel                 string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL               string  `env:"OPENAI_BASE_URL"`
	RequestTimeout              int     `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	EnableInsights              bool    `env:"ENABLE_INSIGHTS" envDefault:"false"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
	return FromEnv(), nil
}

// FromEnv reads the configuration from the current environment only
func FromEnv() *Config {
	var cfg Config

	cfg.DataPath = os.Getenv("DATA_PATH")
	cfg.BenchmarkPath = os.Getenv("BENCHMARK_PATH")
	cfg.RiskFreeRate = getEnvFloatWithDefault("RISK_FREE_RATE", 0.01)
	cfg.PeriodsPerYear = getEnvIntWithDefault("PERIODS_PER_YEAR", 252)
	cfg.TrainWindow = getEnvIntWithDefault("TRAIN_WINDOW", 252)
	cfg.RebalancePeriod = getEnvIntWithDefault("REBALANCE_PERIOD", 63)
	cfg.TransactionCost = getEnvFloatWithDefault("TRANSACTION_COST", 0.001)
	cfg.Strategy = getEnvWithDefault("STRATEGY", "max_sharpe")
	cfg.SensitivityTrainWindows = getEnvIntsWithDefault("SENSITIVITY_TRAIN_WINDOWS", []int{252, 126})
	cfg.SensitivityRebalancePeriods = getEnvIntsWithDefault("SENSITIVITY_REBALANCE_PERIODS", []int{63, 21})
	cfg.RandomPortfolios = getEnvIntWithDefault("RANDOM_PORTFOLIOS", 5000)
	cfg.RandomSeed = int64(getEnvIntWithDefault("RANDOM_SEED", 42))
	cfg.Workers = getEnvIntWithDefault("WORKERS", 0)
	cfg.OutputDir = getEnvWithDefault("OUTPUT_DIR", "output")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.EnableInsights = getEnvBoolWithDefault("ENABLE_INSIGHTS", false)

	return &cfg
}

// Timeout returns RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// InsightsEnabled reports whether commentary was requested and can be produced
func (c *Config) InsightsEnabled() bool {
	return c.EnableInsights && c.OpenAIAPIKey != ""
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvIntsWithDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ints, err := ParseInts(value)
	if err != nil || len(ints) == 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer list, using default")
		return defaultValue
	}
	return ints
}

// ParseInts parses a comma separated list such as "252,126"
func ParseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
