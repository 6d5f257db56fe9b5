package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOnly(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("EXPORT_SHOP_NAME", "veggie-box")
	t.Setenv("EXPORT_SHOP_ACCESS_TOKEN", "shpat_test")
	t.Setenv("EXPORT_PIPELINE_INTERVAL", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "veggie-box", cfg.Shop.Name)
	assert.Equal(t, "2024-01", cfg.Shop.APIVersion)
	assert.Equal(t, "shpat_test", cfg.Shop.AccessToken)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Interval)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.BatchTimeout)
	assert.Equal(t, 100, cfg.Pipeline.PageSize)
	assert.False(t, cfg.Pipeline.PaginateAll)
	assert.Equal(t, "fulfillment_status:unfulfilled AND financial_status:paid", cfg.Pipeline.StatusQuery)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
shop:
  name: file-shop
  api_version: "2023-10"
  access_token: from-file
pipeline:
  batch_size: 3
  paginate_all: true
redis:
  addr: redis:6379
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("EXPORT_SHOP_ACCESS_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-shop", cfg.Shop.Name)
	assert.Equal(t, "2023-10", cfg.Shop.APIVersion)
	assert.Equal(t, "from-env", cfg.Shop.AccessToken)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.True(t, cfg.Pipeline.PaginateAll)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Shop:     ShopConfig{Name: "s", APIVersion: "2024-01", AccessToken: "t"},
			Pipeline: PipelineConfig{BatchSize: 5, PageSize: 100, Interval: time.Second},
		}
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "base url instead of name", mutate: func(c *Config) { c.Shop.Name = ""; c.Shop.BaseURL = "http://localhost" }},
		{name: "missing shop", mutate: func(c *Config) { c.Shop.Name = "" }, errorMsg: "shop.name is required"},
		{name: "missing version", mutate: func(c *Config) { c.Shop.APIVersion = "" }, errorMsg: "shop.api_version is required"},
		{name: "missing token", mutate: func(c *Config) { c.Shop.AccessToken = "" }, errorMsg: "shop.access_token is required"},
		{name: "zero batch", mutate: func(c *Config) { c.Pipeline.BatchSize = 0 }, errorMsg: "pipeline.batch_size must be > 0 (got 0)"},
		{name: "page too large", mutate: func(c *Config) { c.Pipeline.PageSize = 500 }, errorMsg: "pipeline.page_size must be in 1..250 (got 500)"},
		{name: "negative interval", mutate: func(c *Config) { c.Pipeline.Interval = -time.Second }, errorMsg: "pipeline.interval must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errorMsg)
		})
	}
}
