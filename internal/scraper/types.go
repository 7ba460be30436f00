// Package scraper holds the per-site search scrapers and the shared
// listing model they produce.
package scraper

import (
	"context"
	"time"

	"carscraper/config"
)

// Source tags written into the CSV output
const (
	SourceCarGurus   = "cargurus"
	SourceCarsCom    = "cars.com"
	SourceCraigslist = "craigslist"
)

// Listing is one used-car search result. Numeric fields are pointers:
// nil means the page did not expose the value, which is different from
// an explicit zero.
type Listing struct {
	Source    string
	Title     string
	Price     *int
	Year      *int
	Mileage   *int
	Dealer    string
	Location  string
	URL       string
	VIN       string
	FirstSeen time.Time
}

// Scraper is implemented by each site scraper
type Scraper interface {
	// Source returns the tag rows from this scraper carry
	Source() string

	// Scrape pages through search results until exhaustion or failure.
	// On error the listings gathered so far are still returned.
	Scrape(ctx context.Context) ([]Listing, error)
}

// SearchQuery carries the search bounds shared by every site
type SearchQuery struct {
	Zip         string
	RadiusMiles int
	PriceMax    int
	MileageMax  int
	YearMin     int
}

// QueryFromConfig lifts the search bounds out of the app configuration
func QueryFromConfig(cfg *config.Config) SearchQuery {
	return SearchQuery{
		Zip:         cfg.ZipCode,
		RadiusMiles: cfg.RadiusMiles,
		PriceMax:    cfg.PriceMax,
		MileageMax:  cfg.MileageMax,
		YearMin:     cfg.YearMin,
	}
}
