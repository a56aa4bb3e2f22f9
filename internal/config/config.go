// Package config loads runtime settings from defaults, an optional config
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/bubbletran/internal/batch"
	"github.com/valpere/bubbletran/internal/contextstore"
	"github.com/valpere/bubbletran/internal/logging"
	"github.com/valpere/bubbletran/internal/ocr"
	"github.com/valpere/bubbletran/internal/ratelimit"
	"github.com/valpere/bubbletran/internal/retry"
	"github.com/valpere/bubbletran/internal/translator"
)

const EnvPrefix = "BUBBLETRAN"

type Config struct {
	Provider  string                   `mapstructure:"provider"`
	Cerebras  translator.ServiceConfig `mapstructure:"cerebras"`
	Gemini    translator.ServiceConfig `mapstructure:"gemini"`
	Batch     BatchConfig              `mapstructure:"batch"`
	Retry     RetryConfig              `mapstructure:"retry"`
	RateLimit RateLimitConfig          `mapstructure:"rate_limit"`
	Context   contextstore.Config      `mapstructure:"context"`
	OCR       ocr.VisionConfig         `mapstructure:"ocr"`
	Server    ServerConfig             `mapstructure:"server"`
	Log       LogConfig                `mapstructure:"log"`
}

type BatchConfig struct {
	MaxItems int `mapstructure:"max_items"`
	MaxBytes int `mapstructure:"max_bytes"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	// InitialDelay of zero keeps each provider's own delay.
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

type RateLimitConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	AccessFile string `mapstructure:"access_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// envAliases lists the unprefixed variables accepted next to the
// BUBBLETRAN_* form.
var envAliases = map[string]string{
	"cerebras.api_key":  "CEREBRAS_API_KEY",
	"gemini.api_key":    "GEMINI_API_KEY",
	"ocr.credentials":   "GOOGLE_APPLICATION_CREDENTIALS",
	"ocr.api_key":       "VISION_API_KEY",
	"context.redis_url": "REDIS_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", translator.DefaultProvider)

	v.SetDefault("cerebras.api_key", "")
	v.SetDefault("cerebras.model", translator.DefaultCerebrasModel)
	v.SetDefault("cerebras.base_url", translator.DefaultCerebrasBaseURL)
	v.SetDefault("cerebras.timeout", translator.DefaultCerebrasTimeout)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", translator.DefaultGeminiModel)
	v.SetDefault("gemini.base_url", translator.DefaultGeminiBaseURL)
	v.SetDefault("gemini.timeout", translator.DefaultGeminiTimeout)

	v.SetDefault("batch.max_items", batch.DefaultMaxItems)
	v.SetDefault("batch.max_bytes", batch.DefaultMaxBytes)

	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.initial_delay", time.Duration(0))

	v.SetDefault("rate_limit.min_interval", ratelimit.DefaultInterval)

	v.SetDefault("context.backend", "file")
	v.SetDefault("context.path", "")
	v.SetDefault("context.redis_url", "")
	v.SetDefault("context.max_entries", contextstore.DefaultMaxEntries)
	v.SetDefault("context.max_return", contextstore.DefaultMaxReturn)

	v.SetDefault("ocr.credentials", "")
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.endpoint", "")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.fetch_timeout", 20*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.access_file", "")
	v.SetDefault("log.max_size_mb", logging.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logging.DefaultMaxBackups)
}

// Load reads configFile when it is not empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with. An unknown provider
// name is not an error: selection falls back at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.MaxItems < 0 {
		errs = append(errs, errors.New("batch.max_items must not be negative"))
	}
	if c.Batch.MaxBytes < 0 {
		errs = append(errs, errors.New("batch.max_bytes must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, errors.New("retry.initial_delay must not be negative"))
	}
	if c.RateLimit.MinInterval < 0 {
		errs = append(errs, errors.New("rate_limit.min_interval must not be negative"))
	}
	if c.Context.MaxEntries < 0 || c.Context.MaxReturn < 0 {
		errs = append(errs, errors.New("context limits must not be negative"))
	}

	switch strings.ToLower(c.Context.Backend) {
	case "", "file", "sqlite":
	case "redis":
		if c.Context.RedisURL == "" {
			errs = append(errs, errors.New("context.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown context.backend %q", c.Context.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log.max_size_mb and log.max_backups must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
