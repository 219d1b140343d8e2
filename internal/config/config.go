package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// AdminToken gates the operator endpoints. An empty token disables the
	// check entirely, which is only sensible for local development.
	AdminToken   string `env:"ADMIN_TOKEN"`
	PairPassword string `env:"PAIR_PASSWORD"`

	BotName       string `env:"BOT_NAME" envDefault:"DMS"`
	CommandPrefix string `env:"BOT_PREFIX" envDefault:"!"`
	OwnerNumber   string `env:"OWNER_NUMBER"`
	PaymentInfo   string `env:"PAYMENT_INFO"`
	SupportEmail  string `env:"SUPPORT_EMAIL"`

	// ReplyAPIURL is the external reply source queried by auto-chat.
	ReplyAPIURL string `env:"AI_API" envDefault:"https://api.quotable.io/random"`

	// SessionsDir holds per-session transport credential storage.
	SessionsDir string `env:"SESSIONS_DIR" envDefault:"sessions"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"static"`

	// Feature flag defaults for new sessions. A flag is enabled only when its
	// option is exactly the string "true".
	DefaultAutoChat       string `env:"DEFAULT_AUTO_CHAT" envDefault:"false"`
	DefaultAntiCall       string `env:"DEFAULT_ANTI_CALL" envDefault:"true"`
	DefaultViewOnceBypass string `env:"DEFAULT_VIEW_ONCE_BYPASS" envDefault:"true"`
	DefaultAntiDelete     string `env:"DEFAULT_ANTI_DELETE" envDefault:"true"`

	// PendingTTLMinutes bounds how long a pairing attempt may sit in
	// "pending" before the cleanup job discards its record.
	PendingTTLMinutes int `env:"PENDING_TTL_MINUTES" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
