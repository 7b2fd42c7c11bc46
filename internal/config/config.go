package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// Optional server-wide keys. When unset, users supply a credential
	// through the auth form and it lives only in their session.
	OpenAIKey string `env:"OPENAI_API_KEY"`
	GoogleKey string `env:"GOOGLE_API_KEY"`

	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	VideoBaseURL  string `env:"VIDEO_API_BASE_URL" envDefault:"https://aiplatform.googleapis.com/v1"`

	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	CounterDBPath string `env:"COUNTER_DB_PATH" envDefault:"counters.db"`
	LogDir        string `env:"LOG_DIR" envDefault:"logs"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"1"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" envDefault:"5"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
