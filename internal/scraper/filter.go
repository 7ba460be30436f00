package scraper

// Filter drops listings that fall outside the configured bounds: price
// above the cap, mileage above the cap, or model year below the floor.
// A nil field can never disqualify a row; the search radius is already
// enforced by the site query itself.
func Filter(rows []Listing, q SearchQuery) []Listing {
	out := make([]Listing, 0, len(rows))
	for _, r := range rows {
		if r.Price != nil && *r.Price > q.PriceMax {
			continue
		}
		if r.Mileage != nil && *r.Mileage > q.MileageMax {
			continue
		}
		if r.Year != nil && *r.Year < q.YearMin {
			continue
		}
		out = append(out, r)
	}
	return out
}
