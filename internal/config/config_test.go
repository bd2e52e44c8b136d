package config

import (
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 535, cfg.Scraper.ProductCount)
	assert.Equal(t, 10, cfg.Scraper.TimeoutSeconds)
	assert.Equal(t, 10*time.Second, cfg.Scraper.Timeout())
	assert.Equal(t, 2, cfg.Scraper.MaxProductAttempts)
	assert.Equal(t, 1, cfg.Scraper.Workers)
	assert.Equal(t, EnginePlaywright, cfg.Browser.Engine)
	assert.Equal(t, 20*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, filepath.Join("result", "Men's Shoes.csv"), cfg.Output.OutputPath())
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCRAPER_PRODUCT_COUNT", "10")
	t.Setenv("SCRAPER_WORKERS", "4")
	t.Setenv("BROWSER_ENGINE", "ChromeDP")
	t.Setenv("SCRAPER_SCROLL_WAIT", "500ms")
	t.Setenv("SCRAPER_TIMEOUT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scraper.ProductCount)
	assert.Equal(t, 4, cfg.Scraper.Workers)
	assert.Equal(t, EngineChromedp, cfg.Browser.Engine)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.ScrollWait)
	assert.Equal(t, 10, cfg.Scraper.TimeoutSeconds)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero product count", func(c *Config) { c.Scraper.ProductCount = 0 }},
		{"zero timeout", func(c *Config) { c.Scraper.TimeoutSeconds = 0 }},
		{"no workers", func(c *Config) { c.Scraper.Workers = 0 }},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "firefox" }},
		{"db without host", func(c *Config) { c.Database.Enabled = true; c.Database.Host = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), scrapeerr.ErrConfig)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Name: "n"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", d.DSN())

	t.Run("credentials with reserved characters", func(t *testing.T) {
		d := DatabaseConfig{User: "scr@per", Password: "p@ss/w:rd?#", Host: "db", Port: 5432, Name: "nike"}

		u, err := url.Parse(d.DSN())
		require.NoError(t, err)

		pass, ok := u.User.Password()
		assert.True(t, ok)
		assert.Equal(t, "p@ss/w:rd?#", pass)
		assert.Equal(t, "scr@per", u.User.Username())
		assert.Equal(t, "db", u.Hostname())
		assert.Equal(t, "5432", u.Port())
		assert.Equal(t, "/nike", u.Path)
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
	})
}
