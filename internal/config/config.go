// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Store drivers.
const (
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":3000"`
	BotToken    string `env:"BOT_TOKEN"`
	AdminSecret string `env:"ADMIN_SECRET,required,notEmpty"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	StoreDriver    string `env:"STORE_DRIVER" envDefault:"bolt"`
	StorePath      string `env:"STORE_PATH" envDefault:"game_data/sessions.db"`
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"imposter:session:"`
	DatabaseURL    string `env:"DATABASE_URL"`

	OllamaEnabled bool          `env:"OLLAMA_ENABLED" envDefault:"false"`
	OllamaURL     string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel   string        `env:"OLLAMA_MODEL" envDefault:"llama3.2"`
	TopicTimeout  time.Duration `env:"TOPIC_TIMEOUT" envDefault:"10s"`

	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	HistoryQueue       string        `env:"HISTORY_QUEUE"`
	HistorianBatchSize int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlush     time.Duration `env:"HISTORIAN_FLUSH" envDefault:"500ms"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverBolt, DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.HistorianBatchSize < 1 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *logrus.Logger {
	return newLogger(c.LogLevel, c.LogFormat)
}

// HistorianConfig is the environment of the historian process, which needs
// no admin secret or bot token.
type HistorianConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	DatabaseURL  string        `env:"DATABASE_URL,required,notEmpty"`
	HistoryQueue string        `env:"HISTORY_QUEUE" envDefault:"imposter:results"`
	BatchSize    int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	Flush        time.Duration `env:"HISTORIAN_FLUSH" envDefault:"500ms"`
}

// LoadHistorian parses the historian environment.
func LoadHistorian() (*HistorianConfig, error) {
	cfg, err := env.ParseAs[HistorianConfig]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the historian logger.
func (c *HistorianConfig) NewLogger() *logrus.Logger {
	return newLogger(c.LogLevel, c.LogFormat)
}

func newLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
