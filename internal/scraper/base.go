package scraper

import (
	"context"
	"strings"
	"time"

	"carscraper/helpers"
	"carscraper/logger"
)

// fetchFunc retrieves one page body; scrapers hold it as a field so
// tests can swap the network out.
type fetchFunc func(ctx context.Context, url string) ([]byte, error)

// base carries what every site scraper needs: its source tag, a tagged
// logger, the polite delay bounds and a clock.
type base struct {
	source   string
	log      *logger.Logger
	sleepMin time.Duration
	sleepMax time.Duration
	now      func() time.Time
}

func newBase(source string, sleepMin, sleepMax time.Duration) base {
	return base{
		source:   source,
		log:      logger.ForSource(source),
		sleepMin: sleepMin,
		sleepMax: sleepMax,
		now:      time.Now,
	}
}

// politeSleep pauses between page requests so a run never hammers a site
func (b *base) politeSleep(ctx context.Context) error {
	return helpers.Sleep(ctx, b.sleepMin, b.sleepMax)
}

// stringField returns the first non-empty string among keys
func stringField(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// numberField returns the first usable integer among keys, accepting
// plain JSON numbers and formatted strings like "$8,999"
func numberField(item map[string]any, keys ...string) *int {
	for _, k := range keys {
		switch v := item[k].(type) {
		case float64:
			if v != 0 {
				n := int(v)
				return &n
			}
		case string:
			if n := helpers.CleanNumber(v); n != nil {
				return n
			}
		}
	}
	return nil
}

// dedupeByURL drops rows whose URL was already seen, keeping the first.
// Rows without a URL always survive.
func dedupeByURL(rows []Listing) []Listing {
	seen := make(map[string]bool, len(rows))
	out := make([]Listing, 0, len(rows))
	for _, r := range rows {
		if r.URL != "" {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
		}
		out = append(out, r)
	}
	return out
}
