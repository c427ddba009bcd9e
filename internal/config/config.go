package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	DBDriver   string `env:"DB_DRIVER" env-default:"mysql"`
	DBHost     string `env:"DB_HOST" env-default:"localhost"`
	DBPort     string `env:"DB_PORT" env-default:"3306"`
	DBUser     string `env:"DB_USER" env-default:"eduuser"`
	DBPassword string `env:"DB_PASSWORD" env-default:"edupassword"`
	DBName     string `env:"DB_NAME" env-default:"edu_projects"`

	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     string `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SessionSecret string `env:"SESSION_SECRET" env-default:"default-secret-key-change-me"`
	GinMode       string `env:"GIN_MODE" env-default:"debug"`
	HTTPPort      int    `env:"HTTP_PORT" env-default:"8080"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"KAFKA_NOTIFICATION_TOPIC" env-default:"notifications"`

	// SweepInterval is how often upcoming deadlines are scanned.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" env-default:"1h"`
	// SweepDedupe sends each deadline reminder once per horizon instead of on
	// every sweep until the task or project is completed.
	SweepDedupe bool `env:"SWEEP_DEDUPE" env-default:"false"`
}

// Load reads ./config/.env when present and the process environment otherwise.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig("./config/.env", &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}
