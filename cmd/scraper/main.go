package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/config"
	"github.com/maltedev/listing-scraper/internal/database"
	"github.com/maltedev/listing-scraper/internal/discovery"
	"github.com/maltedev/listing-scraper/internal/fetch"
	"github.com/maltedev/listing-scraper/internal/monitoring"
	"github.com/maltedev/listing-scraper/internal/pipeline"
	"github.com/maltedev/listing-scraper/internal/proxy"
	"github.com/maltedev/listing-scraper/internal/scraper"
	"github.com/maltedev/listing-scraper/internal/storage"
	"github.com/maltedev/listing-scraper/pkg/logger"
)

func main() {
	var (
		listingURL = flag.String("url", "", "Listing URL to scrape (overrides SCRAPER_LISTING_URL)")
		count      = flag.Int("count", 0, "Number of products wanted (overrides SCRAPER_PRODUCT_COUNT)")
		timeout    = flag.Int("timeout", 0, "Per-request timeout in seconds (overrides SCRAPER_TIMEOUT)")
		proxyFile  = flag.String("proxies", "", "Proxy list file (overrides SCRAPER_PROXY_FILE)")
		engine     = flag.String("engine", "", "Render engine: playwright or chromedp (overrides BROWSER_ENGINE)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *listingURL != "" {
		cfg.Scraper.ListingURL = *listingURL
	}
	if *count > 0 {
		cfg.Scraper.ProductCount = *count
	}
	if *timeout > 0 {
		cfg.Scraper.TimeoutSeconds = *timeout
	}
	if *proxyFile != "" {
		cfg.Scraper.ProxyFile = *proxyFile
	}
	if *engine != "" {
		cfg.Browser.Engine = *engine
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("scraper failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	runID := uuid.New()
	log = log.With("run_id", runID.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	pool, err := proxy.Load(cfg.Scraper.ProxyFile)
	if err != nil {
		return err
	}
	log.Info("proxies loaded", "file", cfg.Scraper.ProxyFile, "count", pool.Len())

	metrics := monitoring.NewMetrics()

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.NavigationTimeout
	browserOpts.UserAgent = cfg.Browser.UserAgent
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.Locale = cfg.Browser.Locale

	discoveryCfg := discovery.DefaultConfig()
	discoveryCfg.Timeout = cfg.Scraper.Timeout()
	discoveryCfg.MaxProxySwitches = cfg.Scraper.MaxProxySwitches
	discoveryCfg.MaxStableRounds = cfg.Scraper.MaxStableRounds
	discoveryCfg.ScrollWait = cfg.Scraper.ScrollWait

	discoverer := discovery.New(browser.NewListingOpener(browserOpts), pool, discoveryCfg, log,
		discovery.WithProxyFailureHook(func(e proxy.Entry) {
			metrics.IncProxiesBad()
			log.Warn("proxy marked bad", "proxy", e.String(), "live", pool.Live())
		}))

	var sessions scraper.SessionFactory
	switch cfg.Browser.Engine {
	case config.EngineChromedp:
		sessions = browser.NewChromedpFactory(browserOpts)
	default:
		sessions = browser.NewPlaywrightFactory(browserOpts)
	}

	rendered := scraper.NewRenderedExtractor(sessions, cfg.Browser.NavigationTimeout, cfg.Browser.MaxNavAttempts, log)
	builder := scraper.NewProductBuilder(fetch.NewHTTPFetcher(cfg.Scraper.Timeout(), cfg.Browser.UserAgent), rendered, log)

	sinks := storage.MultiSink{storage.NewCSVSink(cfg.Output.OutputPath())}
	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Scraper.Workers),
		pipeline.WithMaxAttempts(cfg.Scraper.MaxProductAttempts),
		pipeline.WithObserver(metrics),
		pipeline.WithRunID(runID.String()),
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			log.Error("failed to connect to database, continuing with CSV only", "error", err)
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				log.Error("failed to prepare database, continuing with CSV only", "error", err)
			} else {
				sinks = append(sinks, storage.NewPostgresSink(db, runID))
			}
		}
	}

	if cfg.Redis.Enabled {
		links, err := storage.NewRedisLinkStore(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.LinkTTL,
		})
		if err != nil {
			log.Error("failed to connect to redis, links will not be recorded", "error", err)
		} else {
			defer links.Close()
			opts = append(opts, pipeline.WithLinkRecorder(links))
		}
	}

	log.Info("starting scraper",
		"url", cfg.Scraper.ListingURL,
		"products", cfg.Scraper.ProductCount,
		"mode", discovery.ModeFor(cfg.Scraper.ProductCount).String(),
		"engine", cfg.Browser.Engine,
		"workers", cfg.Scraper.Workers,
		"output", cfg.Output.OutputPath())

	orchestrator := pipeline.New(discoverer, builder, sinks, log, opts...)
	records, err := orchestrator.Run(ctx, cfg.Scraper.ListingURL, cfg.Scraper.ProductCount)
	if err != nil {
		log.Warn("run interrupted", "error", err, "records", len(records))
	} else {
		log.Info("scraping completed", "records", len(records), "output", cfg.Output.OutputPath())
	}

	if cfg.Output.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.Output.MetricsTextfile); err != nil {
			log.Error("failed to write metrics", "error", err)
		}
	}

	return nil
}
