// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	PostgresURL string `env:"POSTGRES_URL,required,notEmpty"`
	RedisAddr   string `env:"REDIS_ADDR,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	TokenTTL      time.Duration `env:"TOKEN_TTL"      envDefault:"24h"`
	CacheTTL      time.Duration `env:"CACHE_TTL"      envDefault:"60s"`
	PollInterval  time.Duration `env:"POLL_INTERVAL"  envDefault:"1s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	ClaimLease    time.Duration `env:"CLAIM_LEASE"    envDefault:"2m"`
	PaymentExpiry time.Duration `env:"PAYMENT_EXPIRY" envDefault:"30m"`

	RateLimit       int           `env:"RATE_LIMIT"        envDefault:"20"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	Paystack Paystack `envPrefix:"PAYSTACK_"`
	SMTP     SMTP     `envPrefix:"SMTP_"`
	MailFrom string   `env:"MAIL_FROM" envDefault:"tickets@eventful.local"`
}

type Paystack struct {
	SecretKey   string        `env:"SECRET_KEY"`
	BaseURL     string        `env:"BASE_URL"     envDefault:"https://api.paystack.co"`
	CallbackURL string        `env:"CALLBACK_URL"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Addr is host:port, or "" when no host is configured.
func (s SMTP) Addr() string {
	if s.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
