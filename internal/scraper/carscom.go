package scraper

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"carscraper/config"
	"carscraper/helpers"
	"carscraper/internal/fetch"
	"carscraper/pkg/errs"
)

const (
	carsComBaseURL = "https://www.cars.com/shopping/results/"
	carsComSite    = "https://www.cars.com"

	// Selector shared by the parser and the browser's readiness wait
	carsComCardSelector = ".vehicle-card, article.vehicle-card"
)

// browserFetchFunc renders a page and returns its HTML
type browserFetchFunc func(ctx context.Context, url, waitSelector string) (string, error)

// CarsComOptions configures the cars.com scraper
type CarsComOptions struct {
	Query    SearchQuery
	MaxPages int
	PageSize int

	// Mode picks plain HTTP, the headless browser, or HTTP with a
	// browser fallback (config.FetchModeAuto)
	Mode string

	// BaseURL and HomeURL override the endpoints, used by tests
	BaseURL string
	HomeURL string

	Client  *fetch.Client
	Browser *fetch.Browser
}

// CarsCom scrapes cars.com search results. The site sometimes refuses
// plain HTTP clients, so auto mode falls back to a headless browser
// when a page fetch fails.
type CarsCom struct {
	base
	opts         CarsComOptions
	fetchHTTP    fetchFunc
	fetchBrowser browserFetchFunc
	warmUp       func(ctx context.Context, url string) error
}

var _ Scraper = (*CarsCom)(nil)

// NewCarsCom creates a cars.com scraper
func NewCarsCom(opts CarsComOptions) *CarsCom {
	if opts.BaseURL == "" {
		opts.BaseURL = carsComBaseURL
	}
	if opts.HomeURL == "" {
		opts.HomeURL = carsComSite + "/"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Mode == "" {
		opts.Mode = config.FetchModeAuto
	}

	s := &CarsCom{
		base: newBase(SourceCarsCom, 2*time.Second, 6*time.Second),
		opts: opts,
	}
	if opts.Client != nil {
		s.fetchHTTP = opts.Client.Get
		s.warmUp = opts.Client.WarmUp
	}
	if opts.Browser != nil {
		s.fetchBrowser = opts.Browser.Fetch
	}
	return s
}

// Source returns the tag rows from this scraper carry
func (s *CarsCom) Source() string {
	return SourceCarsCom
}

func (s *CarsCom) searchURL(page int) string {
	q := url.Values{}
	q.Set("stock_type", "used")
	q.Set("maximum_distance", strconv.Itoa(s.opts.Query.RadiusMiles))
	q.Set("zip", s.opts.Query.Zip)
	q.Set("list_price_max", strconv.Itoa(s.opts.Query.PriceMax))
	q.Set("mileage_max", strconv.Itoa(s.opts.Query.MileageMax))
	q.Set("year_min", strconv.Itoa(s.opts.Query.YearMin))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(s.opts.PageSize))
	return s.opts.BaseURL + "?" + q.Encode()
}

// Scrape warms the session up for cookies, then pages through results
func (s *CarsCom) Scrape(ctx context.Context) ([]Listing, error) {
	if s.warmUp != nil && s.opts.Mode != config.FetchModeBrowser {
		if err := s.warmUp(ctx, s.opts.HomeURL); err != nil {
			s.log.Debug().Err(err).Msg("warm-up failed, continuing without cookies")
		}
	}

	var all []Listing

	for page := 1; page <= s.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL := s.searchURL(page)
		s.log.Info().Int("page", page).Str("url", pageURL).Msg("fetching page")

		body, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			s.log.Warn().Err(err).Int("page", page).Msg("fetch failed, stopping")
			return all, err
		}

		rows, err := s.parsePage(body, s.now().UTC())
		if err != nil {
			s.log.Warn().Err(err).Int("page", page).Msg("parse failed, stopping")
			return all, err
		}
		if len(rows) == 0 {
			s.log.Info().Int("page", page).Msg("no results, stopping")
			break
		}

		s.log.Info().Int("page", page).Int("listings", len(rows)).Msg("parsed page")
		all = append(all, rows...)

		if page < s.opts.MaxPages {
			if err := s.politeSleep(ctx); err != nil {
				return all, err
			}
		}
	}

	return all, nil
}

func (s *CarsCom) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	switch s.opts.Mode {
	case config.FetchModeHTTP:
		return s.fetchHTTP(ctx, pageURL)
	case config.FetchModeBrowser:
		return s.fetchRendered(ctx, pageURL)
	default:
		body, err := s.fetchHTTP(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		if s.fetchBrowser == nil {
			return nil, err
		}
		s.log.Warn().Err(err).Msg("http fetch failed, falling back to browser")
		return s.fetchRendered(ctx, pageURL)
	}
}

func (s *CarsCom) fetchRendered(ctx context.Context, pageURL string) ([]byte, error) {
	if s.fetchBrowser == nil {
		return nil, errs.NewBrowser(s.source, "browser fetcher not configured", nil)
	}
	html, err := s.fetchBrowser(ctx, pageURL, carsComCardSelector)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func (s *CarsCom) parsePage(body []byte, firstSeen time.Time) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewParse(s.source, "parse page html", err)
	}

	var rows []Listing
	seen := make(map[string]bool)

	doc.Find(carsComCardSelector).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(`a.vehicle-card-link, a[href*="/vehicledetail/"]`).First()
		href, _ := link.Attr("href")
		listingURL := ""
		if href != "" {
			listingURL = helpers.AbsoluteURL(carsComSite, href)
		}

		title := helpers.Clean(card.Find("h2, a.vehicle-card-link").First().Text())
		price := helpers.CleanNumber(card.Find(".primary-price, [data-test='vehicleCardPricingBlockPrice']").First().Text())
		mileage := helpers.CleanNumber(card.Find(".mileage, [data-test='vehicleMileage']").First().Text())
		dealer := helpers.Clean(card.Find(".dealer-name, [data-test='vehicleCardDealerInfo']").First().Text())
		location := helpers.Clean(card.Find(".dealer-name__location, .vehicle-card-location, [data-test='vehicleCardLocation']").First().Text())

		if listingURL == "" && title == "" {
			return
		}

		// The markup sometimes nests a vehicle-card article inside
		// another element with the same class; the URL catches the
		// duplicate.
		if listingURL != "" {
			if seen[listingURL] {
				return
			}
			seen[listingURL] = true
		}

		rows = append(rows, Listing{
			Source:    SourceCarsCom,
			Title:     title,
			Price:     price,
			Year:      helpers.YearFromTitle(title),
			Mileage:   mileage,
			Dealer:    dealer,
			Location:  location,
			URL:       listingURL,
			FirstSeen: firstSeen,
		})
	})

	return rows, nil
}
