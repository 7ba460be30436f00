package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"carscraper/config"
	"carscraper/internal/app"
	"carscraper/internal/fetch"
	"carscraper/internal/scraper"
	"carscraper/logger"
	"carscraper/services/cache"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	var store cache.Store
	if cfg.HTTPCache {
		var err error
		store, err = cache.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open response cache")
		}
		defer store.Close()
	}

	client := fetch.NewClient(fetch.Options{
		Source:   scraper.SourceCarsCom,
		Timeout:  cfg.CarsTimeout,
		Store:    store,
		CacheTTL: cfg.HTTPCacheTTL,
	})

	// The browser only launches if a page actually needs it
	var browser *fetch.Browser
	if cfg.CarsFetchMode != config.FetchModeHTTP {
		browser = fetch.NewBrowser(fetch.BrowserOptions{
			Source:    scraper.SourceCarsCom,
			Headless:  cfg.Headless,
			ChromeBin: cfg.ChromeBin,
			Timeout:   cfg.CarsTimeout,
			Wait:      cfg.CarsBrowserWait,
		})
		defer browser.Close()
	}

	s := scraper.NewCarsCom(scraper.CarsComOptions{
		Query:    scraper.QueryFromConfig(cfg),
		MaxPages: cfg.CarsMaxPages,
		PageSize: cfg.CarsPageSize,
		Mode:     cfg.CarsFetchMode,
		Client:   client,
		Browser:  browser,
	})

	if err := app.RunScrape(ctx, cfg, s); err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}
}
