package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carscraper/pkg/errs"
)

const carGurusJSONPage = `<html>
<head>
<script>
window.__PREFLIGHT__ = {"inventory":{"listings":[
  {"title":"2012 Toyota Camry SE","price":8999,"mileage":123456,"carYear":2012,
   "canonicalUrl":"/Cars/link/12345","vin":"4T1BF1FK5CU510041",
   "dealer":{"name":"Best Dealer","address":"Philadelphia, PA"}},
  {"title":"2002 Honda Civic LX","price":3500,"mileage":200001,"carYear":2002,
   "canonicalUrl":"/Cars/link/67890","vin":"1HGEM22902L012345",
   "dealer":{"name":"Good Cars","address":"Philly, PA"}}
]}};
</script>
</head>
<body></body>
</html>`

const carGurusCardsPage = `<html><body>
<div data-test="inventory-listing">
  <a data-test="listing-link" href="/Cars/inventorylisting/vdp.action?listing=111">2016 Toyota Corolla LE</a>
  <span data-test="listing-price">$7,499</span>
  <span data-test="listing-mileage">88,123 mi</span>
  <span data-test="dealer-name">Corolla King</span>
  <span data-test="listing-location">Norristown, PA</span>
</div>
<div data-test="inventory-listing">
  <a data-test="listing-link" href="/Cars/inventorylisting/vdp.action?listing=222">2009 Ford Focus SE</a>
  <span data-test="listing-price">$3,250</span>
  <span data-test="listing-mileage">150,400 mi</span>
  <span data-test="dealer-name">Focus World</span>
  <span data-test="listing-location">Camden, NJ</span>
</div>
</body></html>`

const emptyPage = `<html><body><p>No results.</p></body></html>`

func newTestCarGurus(t *testing.T, serverURL string) *CarGurus {
	t.Helper()
	s := NewCarGurus(CarGurusOptions{
		Query:   SearchQuery{Zip: "19103", RadiusMiles: 200, PriceMax: 4000, MileageMax: 200000, YearMin: 2004},
		BaseURL: serverURL,
		Client:  newFastClient(SourceCarGurus),
	})
	s.sleepMin, s.sleepMax = 0, 0
	return s
}

func TestCarGurusParseEmbeddedJSON(t *testing.T) {
	s := NewCarGurus(CarGurusOptions{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows, err := s.parsePage([]byte(carGurusJSONPage), now)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, SourceCarGurus, first.Source)
	assert.Contains(t, first.Title, "Toyota Camry")
	require.NotNil(t, first.Price)
	assert.Equal(t, 8999, *first.Price)
	require.NotNil(t, first.Mileage)
	assert.Equal(t, 123456, *first.Mileage)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2012, *first.Year)
	assert.True(t, strings.HasPrefix(first.URL, "https://www.cargurus.com/Cars/"))
	assert.Equal(t, "Best Dealer", first.Dealer)
	assert.Contains(t, first.Location, "Philadelphia")
	assert.Equal(t, "4T1BF1FK5CU510041", first.VIN)
	assert.Equal(t, now, first.FirstSeen)

	second := rows[1]
	assert.Contains(t, second.Title, "Honda Civic")
	require.NotNil(t, second.Year)
	assert.Equal(t, 2002, *second.Year)
}

func TestCarGurusParseCardFallback(t *testing.T) {
	s := NewCarGurus(CarGurusOptions{})

	rows, err := s.parsePage([]byte(carGurusCardsPage), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2016 Toyota Corolla LE", first.Title)
	require.NotNil(t, first.Price)
	assert.Equal(t, 7499, *first.Price)
	require.NotNil(t, first.Mileage)
	assert.Equal(t, 88123, *first.Mileage)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2016, *first.Year)
	assert.Equal(t, "https://www.cargurus.com/Cars/inventorylisting/vdp.action?listing=111", first.URL)
	assert.Equal(t, "Corolla King", first.Dealer)
	assert.Equal(t, "Norristown, PA", first.Location)
	assert.Empty(t, first.VIN, "cards never expose a VIN")
}

func TestCarGurusParseEmptyPage(t *testing.T) {
	s := NewCarGurus(CarGurusOptions{})

	rows, err := s.parsePage([]byte(emptyPage), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCarGurusScrapePagesUntilEmpty(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		assert.Equal(t, "19103", r.URL.Query().Get("zip"))
		assert.Equal(t, "4000", r.URL.Query().Get("maxPrice"))
		assert.Equal(t, "true", r.URL.Query().Get("inventorySearch"))

		if page == "1" {
			w.Write([]byte(carGurusJSONPage))
			return
		}
		w.Write([]byte(emptyPage))
	}))
	defer server.Close()

	s := newTestCarGurus(t, server.URL)
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestCarGurusScrapeStopsOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestCarGurus(t, server.URL)
	rows, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Empty(t, rows)
}

func TestCarGurusScrapeKeepsPartialResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(carGurusJSONPage))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := newTestCarGurus(t, server.URL)
	rows, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Len(t, rows, 2, "listings from successful pages survive a later failure")
}

func TestCarGurusScrapeHonorsCancel(t *testing.T) {
	s := newTestCarGurus(t, "http://127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := s.Scrape(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rows)
}

func TestFindListingItems(t *testing.T) {
	data := map[string]any{
		"breadcrumbs": []any{"home", "used cars"},
		"payload": map[string]any{
			"results": []any{
				map[string]any{"title": "2015 Mazda3", "price": float64(6500)},
				map[string]any{"title": "2013 Accord", "price": float64(7200)},
			},
		},
	}

	items := findListingItems(data)
	require.Len(t, items, 2)
	assert.Equal(t, "2015 Mazda3", items[0]["title"])

	assert.Nil(t, findListingItems(map[string]any{"a": []any{"just", "strings"}}))
	assert.Nil(t, findListingItems([]any{map[string]any{"unrelated": true}}))
}
