package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carscraper/pkg/errs"
)

const craigslistJSONLDPage = `<html><head>
<script id="ld_searchpage_results" type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "SearchResultsPage",
  "itemListElement": [
    {"@type": "ListItem", "position": 1, "item": {
      "@type": "Car",
      "name": "2012 Toyota Camry LE",
      "url": "https://philadelphia.craigslist.org/cto/d/philadelphia-2012-toyota-camry/7712345678.html?utm_source=feed",
      "offers": {"@type": "Offer", "price": "3500"},
      "areaServed": {"@type": "Place", "name": "Philadelphia"}
    }},
    {"@type": "ListItem", "position": 2, "item": {
      "@type": "Car",
      "name": "2002 Honda Civic EX",
      "url": "https://philadelphia.craigslist.org/cto/d/norristown-2002-honda-civic/7712345679.html",
      "offers": {"@type": "Offer", "price": "2200"},
      "areaServed": {"@type": "Place", "name": "Norristown"}
    }}
  ]
}
</script>
</head><body></body></html>`

const craigslistDealerPage = `<html><head>
<script id="ld_searchpage_results" type="application/ld+json">
{
  "itemListElement": [
    {"@type": "ListItem", "position": 1, "item": {
      "@type": "Car",
      "name": "2015 Mazda3 i Touring",
      "url": "https://philadelphia.craigslist.org/cta/d/mazda3-touring/7712340001.html",
      "offers": {"@type": "Offer", "price": "6500"},
      "areaServed": {"@type": "Place", "name": "Cherry Hill"}
    }}
  ]
}
</script>
</head><body></body></html>`

const craigslistDOMPage = `<html><body>
<ul class="rows">
<li class="result-row">
  <a class="result-title hdrlnk" href="/cto/d/philadelphia-2012-toyota-camry/7712345678.html">2012 Toyota Camry LE</a>
  <span class="result-price">$3,500</span>
  <span class="result-hood"> (Philadelphia)</span>
</li>
<li class="result-row">
  <a class="result-title hdrlnk" href="https://philadelphia.craigslist.org/cto/d/norristown-2002-honda-civic/7712345679.html?lang=en">2002 Honda Civic EX</a>
  <span class="result-price">$2,200</span>
  <span class="result-hood"> (Norristown)</span>
</li>
</ul>
</body></html>`

func newTestCraigslist(t *testing.T, opts CraigslistOptions) *Craigslist {
	t.Helper()
	if opts.Query.Zip == "" {
		opts.Query = SearchQuery{Zip: "19103", RadiusMiles: 200, PriceMax: 4000, MileageMax: 200000, YearMin: 2004}
	}
	s := NewCraigslist(opts)
	s.sleepMin, s.sleepMax = 0, 0
	return s
}

func TestCraigslistParseJSONLD(t *testing.T) {
	s := newTestCraigslist(t, CraigslistOptions{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows, err := s.parsePage([]byte(craigslistJSONLDPage), now)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, SourceCraigslist, first.Source)
	assert.Contains(t, first.Title, "Toyota Camry")
	require.NotNil(t, first.Price)
	assert.Equal(t, 3500, *first.Price)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2012, *first.Year)
	assert.Equal(t, "https://philadelphia.craigslist.org/cto/d/philadelphia-2012-toyota-camry/7712345678.html", first.URL,
		"tracking parameters are stripped")
	assert.Equal(t, "Philadelphia", first.Location)
	assert.Equal(t, now, first.FirstSeen)

	second := rows[1]
	require.NotNil(t, second.Price)
	assert.Equal(t, 2200, *second.Price)
	assert.Equal(t, "Norristown", second.Location)
}

func TestCraigslistParseJSONLDAboutBlock(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
{
  "about": [
    {"@type": "Car", "name": "2009 Ford Focus SE", "url": "/cto/d/ford-focus/7712340002.html",
     "price": 2800, "address": "Camden, NJ"},
    {"@type": "ListItem", "item": "https://example.org/not-an-object"}
  ]
}
</script>
</head><body></body></html>`

	s := newTestCraigslist(t, CraigslistOptions{})
	rows, err := s.parsePage([]byte(page), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rows, 1, "an entry whose item is not an object is dropped")

	row := rows[0]
	assert.Equal(t, "2009 Ford Focus SE", row.Title)
	require.NotNil(t, row.Price)
	assert.Equal(t, 2800, *row.Price)
	assert.Equal(t, "https://philadelphia.craigslist.org/cto/d/ford-focus/7712340002.html", row.URL)
	assert.Equal(t, "Camden, NJ", row.Location)
}

func TestCraigslistParseDOMFallback(t *testing.T) {
	s := newTestCraigslist(t, CraigslistOptions{})

	rows, err := s.parsePage([]byte(craigslistDOMPage), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2012 Toyota Camry LE", first.Title)
	require.NotNil(t, first.Price)
	assert.Equal(t, 3500, *first.Price)
	assert.Equal(t, "Philadelphia", first.Location, "the neighborhood tag loses its parentheses")
	assert.Equal(t, "https://philadelphia.craigslist.org/cto/d/philadelphia-2012-toyota-camry/7712345678.html", first.URL)

	second := rows[1]
	assert.Equal(t, "https://philadelphia.craigslist.org/cto/d/norristown-2002-honda-civic/7712345679.html", second.URL,
		"query strings are stripped from row links too")
}

func TestCraigslistParseEmptyPage(t *testing.T) {
	s := newTestCraigslist(t, CraigslistOptions{})

	rows, err := s.parsePage([]byte(emptyPage), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCraigslistScrapeWalksCategories(t *testing.T) {
	type hit struct {
		path   string
		offset string
	}
	var hits []hit

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, hit{path: r.URL.Path, offset: r.URL.Query().Get("s")})

		assert.Equal(t, "19103", r.URL.Query().Get("postal"))
		assert.Equal(t, "4000", r.URL.Query().Get("max_price"))
		assert.Equal(t, "2004", r.URL.Query().Get("auto_year_min"))

		if r.URL.Query().Get("s") != "0" {
			w.Write([]byte(emptyPage))
			return
		}
		switch r.URL.Path {
		case "/search/cto":
			w.Write([]byte(craigslistJSONLDPage))
		case "/search/cta":
			w.Write([]byte(craigslistDealerPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := newTestCraigslist(t, CraigslistOptions{
		BaseURL: server.URL,
		Client:  newFastClient(SourceCraigslist),
	})

	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3, "owner and dealer listings combine")

	want := []hit{
		{"/search/cto", "0"},
		{"/search/cto", "120"},
		{"/search/cta", "0"},
		{"/search/cta", "120"},
	}
	assert.Equal(t, want, hits, "pages advance by the 120-row offset before the next category starts")
}

func TestCraigslistScrapeDedupesAcrossCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") == "0" {
			w.Write([]byte(craigslistJSONLDPage))
			return
		}
		w.Write([]byte(emptyPage))
	}))
	defer server.Close()

	s := newTestCraigslist(t, CraigslistOptions{
		BaseURL: server.URL,
		Client:  newFastClient(SourceCraigslist),
	})

	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2, "a listing cross-posted in both categories counts once")
}

func TestCraigslistScrapeContinuesAfterCategoryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/cto" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("s") == "0" {
			w.Write([]byte(craigslistDealerPage))
			return
		}
		w.Write([]byte(emptyPage))
	}))
	defer server.Close()

	s := newTestCraigslist(t, CraigslistOptions{
		BaseURL: server.URL,
		Client:  newFastClient(SourceCraigslist),
	})

	rows, err := s.Scrape(context.Background())
	require.NoError(t, err, "one broken category does not sink the run")
	assert.Len(t, rows, 1)
}

func TestCraigslistScrapeAllCategoriesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestCraigslist(t, CraigslistOptions{
		BaseURL: server.URL,
		Client:  newFastClient(SourceCraigslist),
	})

	rows, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Empty(t, rows)
}

func TestCraigslistScrapeHonorsCancel(t *testing.T) {
	s := newTestCraigslist(t, CraigslistOptions{
		BaseURL: "http://127.0.0.1:0",
		Client:  newFastClient(SourceCraigslist),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := s.Scrape(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rows)
}
