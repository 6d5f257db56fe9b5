// Package config loads exporter configuration from an optional file and
// EXPORT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. EXPORT_SHOP_ACCESS_TOKEN.
const EnvPrefix = "EXPORT"

// Config is the full exporter configuration.
type Config struct {
	Shop     ShopConfig
	Pipeline PipelineConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Server   ServerConfig
	Log      LogConfig
}

// ShopConfig addresses the remote commerce API.
type ShopConfig struct {
	Name          string // shop identifier, e.g. "veggie-box"
	APIVersion    string // e.g. "2024-01"
	AccessToken   string // static admin API token
	BaseURL       string // overrides https://{name}.myshopify.com when set
	WebhookSecret string // HMAC key for incoming webhooks
}

// PipelineConfig tunes the export pipeline.
type PipelineConfig struct {
	BatchSize    int
	Interval     time.Duration
	BatchTimeout time.Duration
	PageSize     int
	PaginateAll  bool
	StatusQuery  string
}

// RedisConfig holds the Redis connection used for throttle state and the export cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls the export cache.
type CacheConfig struct {
	TTL time.Duration
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Port string
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration with the following priority (highest first):
// 1. environment variables with the EXPORT_ prefix
// 2. the config file (config.yaml in ., ./config or /etc/order-export), or path when non-empty
// 3. built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/order-export")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Shop: ShopConfig{
			Name:          v.GetString("shop.name"),
			APIVersion:    v.GetString("shop.api_version"),
			AccessToken:   v.GetString("shop.access_token"),
			BaseURL:       v.GetString("shop.base_url"),
			WebhookSecret: v.GetString("shop.webhook_secret"),
		},
		Pipeline: PipelineConfig{
			BatchSize:    v.GetInt("pipeline.batch_size"),
			Interval:     v.GetDuration("pipeline.interval"),
			BatchTimeout: v.GetDuration("pipeline.batch_timeout"),
			PageSize:     v.GetInt("pipeline.page_size"),
			PaginateAll:  v.GetBool("pipeline.paginate_all"),
			StatusQuery:  v.GetString("pipeline.status_query"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cache.ttl"),
		},
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("shop.name", "")
	v.SetDefault("shop.api_version", "2024-01")
	v.SetDefault("shop.access_token", "")
	v.SetDefault("shop.base_url", "")
	v.SetDefault("shop.webhook_secret", "")

	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.interval", 4*time.Second)
	v.SetDefault("pipeline.batch_timeout", 30*time.Second)
	v.SetDefault("pipeline.page_size", 100)
	v.SetDefault("pipeline.paginate_all", false)
	v.SetDefault("pipeline.status_query", "fulfillment_status:unfulfilled AND financial_status:paid")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Shop.Name == "" && c.Shop.BaseURL == "" {
		return fmt.Errorf("shop.name is required")
	}
	if c.Shop.APIVersion == "" {
		return fmt.Errorf("shop.api_version is required")
	}
	if c.Shop.AccessToken == "" {
		return fmt.Errorf("shop.access_token is required")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0 (got %d)", c.Pipeline.BatchSize)
	}
	if c.Pipeline.PageSize <= 0 || c.Pipeline.PageSize > 250 {
		return fmt.Errorf("pipeline.page_size must be in 1..250 (got %d)", c.Pipeline.PageSize)
	}
	if c.Pipeline.Interval < 0 {
		return fmt.Errorf("pipeline.interval must not be negative")
	}
	return nil
}
