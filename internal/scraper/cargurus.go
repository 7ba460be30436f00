package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"carscraper/helpers"
	"carscraper/internal/fetch"
	"carscraper/pkg/errs"
)

const (
	carGurusBaseURL = "https://www.cargurus.com/Cars/inventorylisting/viewDetailsFilterViewInventoryListing.action"
	carGurusSite    = "https://www.cargurus.com"
)

// CarGurusOptions configures the CarGurus scraper
type CarGurusOptions struct {
	Query    SearchQuery
	MaxPages int

	// BaseURL overrides the search endpoint, used by tests
	BaseURL string

	Client *fetch.Client
}

// CarGurus scrapes cargurus.com search results. The site renders its
// inventory from JSON embedded in script tags, so parsing digs there
// first and only falls back to the visible cards.
type CarGurus struct {
	base
	opts  CarGurusOptions
	fetch fetchFunc
}

var _ Scraper = (*CarGurus)(nil)

// NewCarGurus creates a CarGurus scraper
func NewCarGurus(opts CarGurusOptions) *CarGurus {
	if opts.BaseURL == "" {
		opts.BaseURL = carGurusBaseURL
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}

	s := &CarGurus{
		base: newBase(SourceCarGurus, 2*time.Second, 6*time.Second),
		opts: opts,
	}
	if opts.Client != nil {
		s.fetch = opts.Client.Get
	}
	return s
}

// Source returns the tag rows from this scraper carry
func (s *CarGurus) Source() string {
	return SourceCarGurus
}

func (s *CarGurus) searchURL(page int) string {
	q := url.Values{}
	q.Set("zip", s.opts.Query.Zip)
	q.Set("radius", strconv.Itoa(s.opts.Query.RadiusMiles))
	q.Set("maxPrice", strconv.Itoa(s.opts.Query.PriceMax))
	q.Set("maxMileage", strconv.Itoa(s.opts.Query.MileageMax))
	q.Set("minYear", strconv.Itoa(s.opts.Query.YearMin))
	q.Set("inventorySearch", "true")
	q.Set("page", strconv.Itoa(page))
	return s.opts.BaseURL + "?" + q.Encode()
}

// Scrape pages through results until a fetch fails, a page parses to
// nothing, or the page cap is reached
func (s *CarGurus) Scrape(ctx context.Context) ([]Listing, error) {
	var all []Listing

	for page := 1; page <= s.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL := s.searchURL(page)
		s.log.Info().Int("page", page).Str("url", pageURL).Msg("fetching page")

		body, err := s.fetch(ctx, pageURL)
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

func (s *CarGurus) parsePage(body []byte, firstSeen time.Time) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewParse(s.source, "parse page html", err)
	}

	if rows := s.listingsFromScripts(doc, firstSeen); len(rows) > 0 {
		return rows, nil
	}
	return s.listingsFromCards(doc, firstSeen), nil
}

// listingsFromScripts scans script tags for embedded inventory JSON,
// unwrapping "window.X = {...};" style assignments before decoding.
func (s *CarGurus) listingsFromScripts(doc *goquery.Document, firstSeen time.Time) []Listing {
	var rows []Listing

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "{") {
			return true
		}

		candidate := strings.TrimSpace(text)
		if strings.Contains(candidate, "=") && !strings.HasPrefix(candidate, "{") {
			parts := strings.SplitN(candidate, "=", 2)
			candidate = strings.TrimSpace(parts[1])
		}
		candidate = strings.Trim(candidate, "; \n\t")

		var data any
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			return true
		}

		for _, item := range findListingItems(data) {
			rows = append(rows, s.listingFromItem(item, firstSeen))
		}
		return len(rows) == 0
	})

	return rows
}

// findListingItems walks decoded JSON for the first array of objects
// that look like inventory entries.
func findListingItems(node any) []map[string]any {
	switch v := node.(type) {
	case []any:
		if len(v) > 0 {
			items := make([]map[string]any, 0, len(v))
			for _, el := range v {
				m, ok := el.(map[string]any)
				if !ok {
					items = nil
					break
				}
				items = append(items, m)
			}
			if items != nil {
				sample := items[0]
				for _, key := range []string{"price", "mileage", "canonicalUrl", "title", "name"} {
					if _, ok := sample[key]; ok {
						return items
					}
				}
			}
		}
		for _, el := range v {
			if found := findListingItems(el); found != nil {
				return found
			}
		}
	case map[string]any:
		for _, el := range v {
			if found := findListingItems(el); found != nil {
				return found
			}
		}
	}
	return nil
}

func (s *CarGurus) listingFromItem(item map[string]any, firstSeen time.Time) Listing {
	title := stringField(item, "title", "name", "header", "heading")
	price := numberField(item, "price", "listingPrice", "priceString")
	mileage := numberField(item, "mileage", "mileageString")

	var dealer, location string
	if d, ok := item["dealer"].(map[string]any); ok {
		dealer = stringField(d, "name")
		location = stringField(d, "address", "location")
	}
	if dealer == "" {
		dealer = stringField(item, "dealerName", "sellerName")
	}
	if location == "" {
		location = stringField(item, "dealerLocation", "location")
	}

	listingURL := stringField(item, "canonicalUrl", "url", "link", "detailUrl")
	if listingURL != "" && !strings.HasPrefix(listingURL, "http") {
		listingURL = helpers.AbsoluteURL(carGurusSite, listingURL)
	}

	year := numberField(item, "carYear", "year")
	if year == nil {
		year = helpers.YearFromTitle(title)
	}

	return Listing{
		Source:    SourceCarGurus,
		Title:     title,
		Price:     price,
		Year:      year,
		Mileage:   mileage,
		Dealer:    dealer,
		Location:  location,
		URL:       listingURL,
		VIN:       stringField(item, "vin"),
		FirstSeen: firstSeen,
	}
}

// listingsFromCards scrapes the visible inventory cards, the fallback
// when no embedded JSON surfaced.
func (s *CarGurus) listingsFromCards(doc *goquery.Document, firstSeen time.Time) []Listing {
	var rows []Listing

	cards := doc.Find("[data-test='inventory-listing'], [data-cg-ft='inventory-listing'], div[data-listingid]")
	cards.Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a[data-test='listing-link'], a[itemprop='url'], a[href]").First()
		href, _ := link.Attr("href")
		listingURL := ""
		if href != "" {
			listingURL = helpers.AbsoluteURL(carGurusSite, href)
		}
		title := helpers.Clean(link.Text())

		price := helpers.CleanNumber(card.Find("[data-test='listing-price'], [itemprop='price'], [data-cg-ft='listing-price']").First().Text())
		mileage := helpers.CleanNumber(card.Find("[data-test='mileage'], [data-test='listing-mileage'], [itemprop='mileage']").First().Text())
		dealer := helpers.Clean(card.Find("[data-test='dealer-name'], [itemprop='seller'], [data-cg-ft='dealer-name']").First().Text())
		location := helpers.Clean(card.Find("[data-test='dealer-address'], [data-test='listing-location'], [itemprop='address']").First().Text())

		if listingURL == "" && title == "" {
			return
		}

		rows = append(rows, Listing{
			Source:    SourceCarGurus,
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

	return rows
}
