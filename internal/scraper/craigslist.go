package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"carscraper/helpers"
	"carscraper/internal/fetch"
	"carscraper/pkg/errs"
)

// CraigslistOptions configures the craigslist scraper
type CraigslistOptions struct {
	Query    SearchQuery
	MaxPages int

	// Domain is the craigslist subdomain to search, e.g. "philadelphia"
	Domain string

	// Categories are the search sections to walk, normally cto and cta
	Categories []string

	// BaseURL overrides the site root, used by tests
	BaseURL string

	Client *fetch.Client
}

// Craigslist scrapes craigslist search results across one or more
// categories. Search pages embed their results as JSON-LD, which is far
// more stable than the markup, so the DOM is only a fallback.
type Craigslist struct {
	base
	opts  CraigslistOptions
	fetch fetchFunc
}

var _ Scraper = (*Craigslist)(nil)

// NewCraigslist creates a craigslist scraper
func NewCraigslist(opts CraigslistOptions) *Craigslist {
	if opts.Domain == "" {
		opts.Domain = "philadelphia"
	}
	if len(opts.Categories) == 0 {
		opts.Categories = []string{"cto", "cta"}
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 9999
	}

	s := &Craigslist{
		base: newBase(SourceCraigslist, 3*time.Second, 7*time.Second),
		opts: opts,
	}
	if opts.Client != nil {
		s.fetch = opts.Client.Get
	}
	return s
}

// Source returns the tag rows from this scraper carry
func (s *Craigslist) Source() string {
	return SourceCraigslist
}

func (s *Craigslist) siteRoot() string {
	if s.opts.BaseURL != "" {
		return s.opts.BaseURL
	}
	return fmt.Sprintf("https://%s.craigslist.org", s.opts.Domain)
}

func (s *Craigslist) searchURL(category string, page int) string {
	q := url.Values{}
	q.Set("postal", s.opts.Query.Zip)
	q.Set("search_distance", strconv.Itoa(s.opts.Query.RadiusMiles))
	q.Set("max_price", strconv.Itoa(s.opts.Query.PriceMax))
	q.Set("auto_year_min", strconv.Itoa(s.opts.Query.YearMin))
	q.Set("auto_miles_max", strconv.Itoa(s.opts.Query.MileageMax))
	q.Set("s", strconv.Itoa((page-1)*120))
	return fmt.Sprintf("%s/search/%s?%s", s.siteRoot(), category, q.Encode())
}

// Scrape walks every configured category in order. A failure inside one
// category stops that category only; the error surfaces when nothing at
// all was scraped.
func (s *Craigslist) Scrape(ctx context.Context) ([]Listing, error) {
	var all []Listing
	var lastErr error

	for _, category := range s.opts.Categories {
		for page := 1; page <= s.opts.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				return dedupeByURL(all), err
			}

			pageURL := s.searchURL(category, page)
			s.log.Info().Str("category", category).Int("page", page).Str("url", pageURL).Msg("fetching page")

			body, err := s.fetch(ctx, pageURL)
			if err != nil {
				s.log.Warn().Err(err).Str("category", category).Int("page", page).Msg("fetch failed, stopping category")
				lastErr = err
				break
			}

			rows, err := s.parsePage(body, s.now().UTC())
			if err != nil {
				s.log.Warn().Err(err).Str("category", category).Int("page", page).Msg("parse failed, stopping category")
				lastErr = err
				break
			}
			if len(rows) == 0 {
				s.log.Info().Str("category", category).Int("page", page).Msg("no results, stopping category")
				break
			}

			s.log.Info().Str("category", category).Int("page", page).Int("listings", len(rows)).Msg("parsed page")
			all = append(all, rows...)

			if page < s.opts.MaxPages {
				if err := s.politeSleep(ctx); err != nil {
					return dedupeByURL(all), err
				}
			}
		}
	}

	all = dedupeByURL(all)
	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

func (s *Craigslist) parsePage(body []byte, firstSeen time.Time) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewParse(s.source, "parse page html", err)
	}

	rows := s.listingsFromJSONLD(doc, firstSeen)
	if len(rows) == 0 {
		rows = s.listingsFromRows(doc, firstSeen)
	}
	return rows, nil
}

// listingsFromJSONLD reads the structured results block craigslist
// embeds in its search pages.
func (s *Craigslist) listingsFromJSONLD(doc *goquery.Document, firstSeen time.Time) []Listing {
	script := doc.Find("script#ld_searchpage_results").First()
	if script.Length() == 0 {
		script = doc.Find(`script[type="application/ld+json"]`).First()
	}
	if script.Length() == 0 {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil
	}

	entries, ok := data["itemListElement"].([]any)
	if !ok {
		entries, _ = data["about"].([]any)
	}

	var rows []Listing
	seen := make(map[string]bool)

	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		// itemListElement wraps each result in a ListItem with the
		// listing nested under "item"
		item := entry
		if inner, present := entry["item"]; present {
			if item, ok = inner.(map[string]any); !ok {
				continue
			}
		}

		title := stringField(item, "name", "headline")
		listingURL := stringField(item, "url", "@id")
		if listingURL != "" && !strings.HasPrefix(listingURL, "http") {
			listingURL = helpers.AbsoluteURL(s.siteRoot(), listingURL)
		}
		if listingURL != "" {
			listingURL = helpers.StripQuery(listingURL)
		}

		if listingURL == "" && title == "" {
			continue
		}

		var price *int
		if offers, ok := item["offers"].(map[string]any); ok {
			price = numberField(offers, "price")
		} else {
			price = numberField(item, "price")
		}

		var location string
		area, ok := item["areaServed"]
		if !ok || area == nil {
			area = item["address"]
		}
		switch a := area.(type) {
		case map[string]any:
			location = stringField(a, "name", "addressLocality", "addressRegion")
		case string:
			location = strings.TrimSpace(a)
		}

		if listingURL != "" {
			if seen[listingURL] {
				continue
			}
			seen[listingURL] = true
		}

		rows = append(rows, Listing{
			Source:    SourceCraigslist,
			Title:     title,
			Price:     price,
			Year:      helpers.YearFromTitle(title),
			Location:  location,
			URL:       listingURL,
			FirstSeen: firstSeen,
		})
	}

	return rows
}

// listingsFromRows scrapes the legacy result markup, the fallback when
// no structured data was found.
func (s *Craigslist) listingsFromRows(doc *goquery.Document, firstSeen time.Time) []Listing {
	var rows []Listing
	seen := make(map[string]bool)

	doc.Find("li.result-row, li.cl-search-result").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.result-title, a.hdrlnk").First()
		href, _ := link.Attr("href")
		listingURL := ""
		if href != "" {
			listingURL = helpers.StripQuery(helpers.AbsoluteURL(s.siteRoot(), href))
		}
		title := helpers.Clean(link.Text())

		price := helpers.CleanNumber(row.Find("span.result-price, span.price").First().Text())
		location := helpers.TrimParens(row.Find("span.result-hood, span.nearby").First().Text())

		if listingURL == "" && title == "" {
			return
		}

		if listingURL != "" {
			if seen[listingURL] {
				return
			}
			seen[listingURL] = true
		}

		rows = append(rows, Listing{
			Source:    SourceCraigslist,
			Title:     title,
			Price:     price,
			Year:      helpers.YearFromTitle(title),
			Location:  location,
			URL:       listingURL,
			FirstSeen: firstSeen,
		})
	})

	return rows
}
