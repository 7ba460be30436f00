package main

import (
	"github.com/joho/godotenv"

	"carscraper/config"
	"carscraper/internal/merge"
	"carscraper/internal/scraper"
	"carscraper/logger"
	"carscraper/storage"
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

	// Input order decides dedup ties: the first file a listing appears
	// in keeps it
	inputs := []merge.Input{
		{Source: scraper.SourceCarGurus, Path: storage.ResultsPath(cfg.OutputDir, scraper.SourceCarGurus)},
		{Source: scraper.SourceCarsCom, Path: storage.ResultsPath(cfg.OutputDir, scraper.SourceCarsCom)},
		{Source: scraper.SourceCraigslist, Path: storage.ResultsPath(cfg.OutputDir, scraper.SourceCraigslist)},
	}

	if _, err := merge.New().Run(inputs, storage.CombinedPath(cfg.OutputDir)); err != nil {
		log.Fatal().Err(err).Msg("Merge failed")
	}
}
