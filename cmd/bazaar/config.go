package main

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bazaarlabs/bazaar/pkg/db"
	"github.com/bazaarlabs/bazaar/pkg/logger"
	"github.com/bazaarlabs/bazaar/pkg/mailer"
	"github.com/bazaarlabs/bazaar/pkg/mailer/resend"
	"github.com/bazaarlabs/bazaar/pkg/redis"
)

// Config is the full application configuration, populated from the
// environment.
type Config struct {
	// Address is the HTTP listen address.
	Address string `env:"SERVER_ADDR" envDefault:":8080"`
	// BaseURL is the externally visible origin, used in emailed links.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieSecret signs the session cookie.
	CookieSecret string        `env:"COOKIE_SECRET,required"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// LoginAttemptRetention is how long login_attempts rows are kept; it
	// must not undercut the lockout window.
	LoginAttemptRetention time.Duration `env:"LOGIN_ATTEMPT_RETENTION" envDefault:"720h"`

	Logger logger.Config
	DB     db.Config
	Redis  redis.Config
	Mailer mailer.Config
	Resend resend.Config

	// S3-compatible storage for product images.
	Storage StorageConfig
}

// StorageConfig carries the env-tagged S3 settings pkg/storage consumes.
type StorageConfig struct {
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	PublicURL string `env:"S3_PUBLIC_URL"`
	PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
