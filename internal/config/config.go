// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package config loads the server configuration. Sources are layered, later
// ones winning: built-in defaults, the YAML file, environment (optionally
// seeded from a .env file), then flags the user set explicitly.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/sayedAmaan-6104/tpo-react/internal/logging"
)

// Notification transports.
const (
	TransportLog   = "log"
	TransportAMQP  = "amqp"
	TransportRedis = "redis"
)

// envKeys maps environment variables onto config keys. Connection strings
// usually carry credentials, so they are read from the environment.
var envKeys = map[string]string{
	"DATABASE_URL":  "database_url",
	"AMQP_URL":      "amqp_url",
	"REDIS_URL":     "redis_url",
	"TPO_HTTP_ADDR": "http_addr",
	"TPO_LOG_LEVEL": "log_level",
}

// Config is the full server configuration.
type Config struct {
	HTTPAddr    string `koanf:"http_addr" yaml:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr"`

	DatabaseURL      string `koanf:"database_url" yaml:"database_url"`
	DatabaseMaxConns int32  `koanf:"database_max_conns" yaml:"database_max_conns"`
	AutoMigrate      bool   `koanf:"auto_migrate" yaml:"auto_migrate"`

	LogLevel  string `koanf:"log_level" yaml:"log_level"`
	LogFormat string `koanf:"log_format" yaml:"log_format"`

	CORSOrigins  []string      `koanf:"cors_origins" yaml:"cors_origins"`
	CookieSecure bool          `koanf:"cookie_secure" yaml:"cookie_secure"`
	CookieMaxAge time.Duration `koanf:"cookie_max_age" yaml:"cookie_max_age"`
	ExposeTokens bool          `koanf:"expose_tokens" yaml:"expose_tokens"`

	SecretMinLength      int           `koanf:"secret_min_length" yaml:"secret_min_length"`
	ResetTokenTTL        time.Duration `koanf:"reset_token_ttl" yaml:"reset_token_ttl"`
	VerificationTokenTTL time.Duration `koanf:"verification_token_ttl" yaml:"verification_token_ttl"`
	TokenPurgeInterval   time.Duration `koanf:"token_purge_interval" yaml:"token_purge_interval"`
	TokenRetention       time.Duration `koanf:"token_retention" yaml:"token_retention"`

	NotifyTransport string `koanf:"notify_transport" yaml:"notify_transport"`
	AMQPURL         string `koanf:"amqp_url" yaml:"amqp_url"`
	AMQPQueue       string `koanf:"amqp_queue" yaml:"amqp_queue"`
	RedisURL        string `koanf:"redis_url" yaml:"redis_url"`
	RedisChannel    string `koanf:"redis_channel" yaml:"redis_channel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:             ":8000",
		MetricsAddr:          "127.0.0.1:9100",
		DatabaseMaxConns:     10,
		LogLevel:             "info",
		LogFormat:            "json",
		CORSOrigins:          []string{"http://localhost:5173"},
		CookieMaxAge:         14 * 24 * time.Hour,
		SecretMinLength:      8,
		ResetTokenTTL:        time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		TokenPurgeInterval:   time.Hour,
		TokenRetention:       24 * time.Hour,
		NotifyTransport:      TransportLog,
		AMQPQueue:            "tpo.notifications",
		RedisChannel:         "tpo:notifications",
	}
}

// RegisterFlags adds one flag per setting to fs, defaulted from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTPAddr, "API listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.Int("database-max-conns", int(d.DatabaseMaxConns), "maximum pooled database connections")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply pending migrations on startup")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.StringSlice("cors-origins", d.CORSOrigins, "origins allowed to call the API with credentials")
	fs.Bool("cookie-secure", d.CookieSecure, "mark the session cookie Secure")
	fs.Duration("cookie-max-age", d.CookieMaxAge, "session cookie lifetime (0 = browser session)")
	fs.Bool("expose-tokens", d.ExposeTokens, "return issued tokens in API responses (development only)")
	fs.Int("secret-min-length", d.SecretMinLength, "minimum password length")
	fs.Duration("reset-token-ttl", d.ResetTokenTTL, "password reset token lifetime")
	fs.Duration("verification-token-ttl", d.VerificationTokenTTL, "email verification token lifetime")
	fs.Duration("token-purge-interval", d.TokenPurgeInterval, "how often expired tokens are deleted (0 = never)")
	fs.Duration("token-retention", d.TokenRetention, "how long expired tokens are kept before deletion")
	fs.String("notify-transport", d.NotifyTransport, "notification transport (log, amqp or redis)")
	fs.String("amqp-queue", d.AMQPQueue, "AMQP queue for notifications")
	fs.String("redis-channel", d.RedisChannel, "Redis channel for notifications")
}

// Load builds the configuration. An empty path skips the file; a missing
// .env file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", ".env").Wrap(err)
	}
	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	problems := map[string]string{}
	if c.HTTPAddr == "" {
		problems["http_addr"] = "is required"
	}
	if c.DatabaseURL == "" {
		problems["database_url"] = "is required (set DATABASE_URL)"
	}
	if c.DatabaseMaxConns < 1 {
		problems["database_max_conns"] = "must be at least 1"
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		problems["log_format"] = "must be json or text"
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems["log_level"] = "must be debug, info, warn or error"
	}
	if c.SecretMinLength < 1 {
		problems["secret_min_length"] = "must be at least 1"
	}
	if c.ResetTokenTTL <= 0 {
		problems["reset_token_ttl"] = "must be positive"
	}
	if c.VerificationTokenTTL <= 0 {
		problems["verification_token_ttl"] = "must be positive"
	}
	if c.TokenPurgeInterval < 0 {
		problems["token_purge_interval"] = "must not be negative"
	}
	switch c.NotifyTransport {
	case TransportLog:
	case TransportAMQP:
		if c.AMQPURL == "" {
			problems["amqp_url"] = "is required for the amqp transport (set AMQP_URL)"
		}
	case TransportRedis:
		if c.RedisURL == "" {
			problems["redis_url"] = "is required for the redis transport (set REDIS_URL)"
		}
	default:
		problems["notify_transport"] = "must be log, amqp or redis"
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").With("problems", problems).Errorf("invalid configuration")
	}
	return nil
}
