// Package app drives one scraper run end to end.
package app

import (
	"context"

	"carscraper/config"
	"carscraper/internal/insights"
	"carscraper/internal/scraper"
	"carscraper/logger"
	"carscraper/storage"
)

// RunScrape scrapes, logs summaries, filters, and writes the per-source
// CSV. A scrape failure still writes whatever was gathered, so a partial
// run leaves usable output behind.
func RunScrape(ctx context.Context, cfg *config.Config, s scraper.Scraper) error {
	log := logger.ForSource(s.Source())

	rows, err := s.Scrape(ctx)
	if err != nil {
		log.Error().Err(err).Int("rows", len(rows)).Msg("scrape ended early")
	}

	insights.Compute(rows).Log(log, "scraped")
	kept := scraper.Filter(rows, scraper.QueryFromConfig(cfg))
	insights.Compute(kept).Log(log, "filtered")

	path := storage.ResultsPath(cfg.OutputDir, s.Source())
	if err := storage.WriteListings(path, kept); err != nil {
		return err
	}

	log.Info().Int("rows", len(kept)).Str("path", path).Msg("results written")
	return nil
}
