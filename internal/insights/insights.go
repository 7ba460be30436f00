// Package insights reduces a batch of listings to the handful of
// numbers worth logging: row counts, price and mileage spreads, and how
// many rows came back without a title or location.
package insights

import (
	"sort"

	"carscraper/internal/scraper"
	"carscraper/logger"
)

// NumberSummary describes the values a numeric field actually carried.
// Known counts the rows where the field was present at all.
type NumberSummary struct {
	Known  int
	Min    int
	Max    int
	Avg    int
	Median int
}

// Summary aggregates one batch of listings
type Summary struct {
	Rows            int
	Price           NumberSummary
	Mileage         NumberSummary
	MissingTitle    int
	MissingLocation int
}

// Compute summarizes rows
func Compute(rows []scraper.Listing) Summary {
	s := Summary{Rows: len(rows)}

	var prices, mileages []int
	for _, r := range rows {
		if r.Price != nil {
			prices = append(prices, *r.Price)
		}
		if r.Mileage != nil {
			mileages = append(mileages, *r.Mileage)
		}
		if r.Title == "" {
			s.MissingTitle++
		}
		if r.Location == "" {
			s.MissingLocation++
		}
	}

	s.Price = summarize(prices)
	s.Mileage = summarize(mileages)
	return s
}

func summarize(values []int) NumberSummary {
	if len(values) == 0 {
		return NumberSummary{}
	}

	sort.Ints(values)
	sum := 0
	for _, v := range values {
		sum += v
	}

	mid := len(values) / 2
	median := values[mid]
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	}

	return NumberSummary{
		Known:  len(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		Avg:    sum / len(values),
		Median: median,
	}
}

// Log writes the summary at info level. The stage tag keeps the
// pre-filter and post-filter lines apart in the run output.
func (s Summary) Log(log *logger.Logger, stage string) {
	ev := log.Info().
		Str("stage", stage).
		Int("rows", s.Rows)

	if s.Price.Known > 0 {
		ev.Int("price_min", s.Price.Min).
			Int("price_median", s.Price.Median).
			Int("price_avg", s.Price.Avg).
			Int("price_max", s.Price.Max)
	}
	if s.Mileage.Known > 0 {
		ev.Int("mileage_min", s.Mileage.Min).
			Int("mileage_median", s.Mileage.Median).
			Int("mileage_avg", s.Mileage.Avg).
			Int("mileage_max", s.Mileage.Max)
	}
	if s.MissingTitle > 0 {
		ev.Int("missing_title", s.MissingTitle)
	}
	if s.MissingLocation > 0 {
		ev.Int("missing_location", s.MissingLocation)
	}

	ev.Msg("listing summary")
}
