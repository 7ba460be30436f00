// Package storage reads and writes the CSV files a run produces.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carscraper/internal/scraper"
)

// Header is the column layout of a per-source results file
var Header = []string{"title", "price", "year", "mileage", "dealer", "location", "url", "vin", "first_seen"}

// CombinedHeader prefixes Header with the source tag, the layout of the
// merged file
var CombinedHeader = append([]string{"source"}, Header...)

// ResultsPath returns the per-source output file under dir, e.g.
// cargurus_results.csv. Dots in the source tag are dropped so cars.com
// lands in carscom_results.csv.
func ResultsPath(dir, source string) string {
	name := strings.ReplaceAll(source, ".", "") + "_results.csv"
	return filepath.Join(dir, name)
}

// CombinedPath returns the merged output file under dir
func CombinedPath(dir string) string {
	return filepath.Join(dir, "combined_listings.csv")
}

// WriteListings writes rows to path in the per-source layout,
// truncating any previous file. Intermediate directories are created
// automatically.
func WriteListings(path string, rows []scraper.Listing) error {
	records := make([][]string, 0, len(rows))
	for _, l := range rows {
		records = append(records, listingRecord(l))
	}
	return WriteTable(path, Header, records)
}

// WriteTable writes a header and records to path as CSV
func WriteTable(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush %q: %w", path, err)
	}
	return f.Close()
}

func listingRecord(l scraper.Listing) []string {
	return []string{
		l.Title,
		formatNumber(l.Price),
		formatNumber(l.Year),
		formatNumber(l.Mileage),
		l.Dealer,
		l.Location,
		l.URL,
		l.VIN,
		l.FirstSeen.UTC().Format(time.RFC3339),
	}
}

// An absent numeric value writes as an empty cell, not a zero
func formatNumber(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// Table is one parsed CSV file. Rows are keyed by header name so a file
// with reordered or extra columns still reads cleanly.
type Table struct {
	Rows      []map[string]string
	Malformed int
}

// ReadTable reads the CSV file at path. Rows whose field count does not
// match the header are counted in Malformed and skipped rather than
// failing the whole file. An empty file yields an empty table.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &Table{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				table.Malformed++
				continue
			}
			return nil, fmt.Errorf("csv: read %q: %w", path, err)
		}
		if len(record) != len(header) {
			table.Malformed++
			continue
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
