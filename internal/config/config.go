package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	ListingURL         string
	ProductCount       int
	TimeoutSeconds     int
	ProxyFile          string
	Workers            int
	MaxProductAttempts int
	MaxProxySwitches   int
	MaxStableRounds    int
	ScrollWait         time.Duration
}

type BrowserConfig struct {
	Engine            string
	Headless          bool
	NavigationTimeout time.Duration
	MaxNavAttempts    int
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
}

type OutputConfig struct {
	Directory       string
	FileName        string
	MetricsTextfile string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LinkTTL  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: load .env: %v", scrapeerr.ErrConfig, err)
	}

	cfg := &Config{
		Scraper: ScraperConfig{
			ListingURL:         getEnv("SCRAPER_LISTING_URL", "https://www.nike.com/id/w/mens-shoes-nik1zy7ok"),
			ProductCount:       getEnvInt("SCRAPER_PRODUCT_COUNT", 535),
			TimeoutSeconds:     getEnvInt("SCRAPER_TIMEOUT", 10),
			ProxyFile:          getEnv("SCRAPER_PROXY_FILE", filepath.Join("src", "valid_proxies.txt")),
			Workers:            getEnvInt("SCRAPER_WORKERS", 1),
			MaxProductAttempts: getEnvInt("SCRAPER_MAX_RETRIES", 2),
			MaxProxySwitches:   getEnvInt("SCRAPER_MAX_PROXY_SWITCHES", 3),
			MaxStableRounds:    getEnvInt("SCRAPER_MAX_STABLE_ROUNDS", 3),
			ScrollWait:         getEnvDuration("SCRAPER_SCROLL_WAIT", 3*time.Second),
		},
		Browser: BrowserConfig{
			Engine:            strings.ToLower(getEnv("BROWSER_ENGINE", EnginePlaywright)),
			Headless:          getEnvBool("BROWSER_HEADLESS", true),
			NavigationTimeout: getEnvDuration("BROWSER_NAVIGATION_TIMEOUT", 20*time.Second),
			MaxNavAttempts:    getEnvInt("BROWSER_MAX_NAV_ATTEMPTS", 2),
			UserAgent:         getEnv("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:     getEnvInt("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getEnvInt("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:            getEnv("BROWSER_LOCALE", "en-US"),
		},
		Output: OutputConfig{
			Directory:       getEnv("OUTPUT_DIR", "result"),
			FileName:        getEnv("OUTPUT_FILE", "Men's Shoes.csv"),
			MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "listing_scraper"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LinkTTL:  getEnvDuration("REDIS_LINK_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.Scraper.ListingURL == "" {
		problems = append(problems, "SCRAPER_LISTING_URL is required")
	}
	if c.Scraper.ProductCount < 1 {
		problems = append(problems, "SCRAPER_PRODUCT_COUNT must be positive")
	}
	if c.Scraper.TimeoutSeconds < 1 {
		problems = append(problems, "SCRAPER_TIMEOUT must be positive")
	}
	if c.Scraper.ProxyFile == "" {
		problems = append(problems, "SCRAPER_PROXY_FILE is required")
	}
	if c.Scraper.Workers < 1 {
		problems = append(problems, "SCRAPER_WORKERS must be at least 1")
	}
	if c.Scraper.MaxProductAttempts < 1 {
		problems = append(problems, "SCRAPER_MAX_RETRIES must be at least 1")
	}
	if c.Scraper.MaxProxySwitches < 1 {
		problems = append(problems, "SCRAPER_MAX_PROXY_SWITCHES must be at least 1")
	}
	if c.Scraper.MaxStableRounds < 1 {
		problems = append(problems, "SCRAPER_MAX_STABLE_ROUNDS must be at least 1")
	}
	if c.Browser.Engine != EnginePlaywright && c.Browser.Engine != EngineChromedp {
		problems = append(problems, fmt.Sprintf("BROWSER_ENGINE must be %q or %q", EnginePlaywright, EngineChromedp))
	}
	if c.Browser.MaxNavAttempts < 1 {
		problems = append(problems, "BROWSER_MAX_NAV_ATTEMPTS must be at least 1")
	}
	if c.Output.FileName == "" {
		problems = append(problems, "OUTPUT_FILE is required")
	}
	if c.Database.Enabled && c.Database.Host == "" {
		problems = append(problems, "DB_HOST is required when DB_ENABLED is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "REDIS_ADDR is required when REDIS_ENABLED is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", scrapeerr.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Timeout is the per-request budget as a duration.
func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// OutputPath resolves the CSV destination.
func (o OutputConfig) OutputPath() string {
	return filepath.Join(o.Directory, o.FileName)
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
