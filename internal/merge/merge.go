// Package merge unions the per-source result files into one combined
// CSV, dropping listings that were scraped from more than one place.
package merge

import (
	"errors"
	"io/fs"
	"strings"

	"carscraper/helpers"
	"carscraper/logger"
	"carscraper/pkg/errs"
	"carscraper/storage"
)

// Input names one per-source results file. Inputs are processed in
// order, which is what decides dedup ties.
type Input struct {
	Source string
	Path   string
}

// Stats counts what a merge run saw
type Stats struct {
	FilesRead    int
	FilesMissing int
	RowsIn       int
	RowsOut      int
	Duplicates   int
	Malformed    int
}

// Merger combines per-source result files
type Merger struct {
	log *logger.Logger
}

// New creates a Merger
func New() *Merger {
	return &Merger{log: logger.ForMerge()}
}

// Run reads every input in order and writes the combined file to
// outPath. The first occurrence of a listing wins; later files never
// override earlier ones. A missing input is skipped, so a partial
// scrape run still merges.
func (m *Merger) Run(inputs []Input, outPath string) (Stats, error) {
	var stats Stats
	seen := make(map[string]bool)
	var records [][]string

	for _, in := range inputs {
		table, err := storage.ReadTable(in.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				stats.FilesMissing++
				m.log.Warn().Str("source", in.Source).Str("path", in.Path).Msg("results file missing, skipping")
				continue
			}
			return stats, errs.NewMerge("read "+in.Path, err)
		}

		stats.FilesRead++
		stats.Malformed += table.Malformed

		kept := 0
		for _, row := range table.Rows {
			stats.RowsIn++

			if key := mergeKey(row); key != "" {
				if seen[key] {
					stats.Duplicates++
					continue
				}
				seen[key] = true
			}

			records = append(records, combinedRecord(in.Source, row))
			kept++
		}

		m.log.Info().
			Str("source", in.Source).
			Int("rows", len(table.Rows)).
			Int("kept", kept).
			Int("malformed", table.Malformed).
			Msg("merged results file")
	}

	if err := storage.WriteTable(outPath, storage.CombinedHeader, records); err != nil {
		return stats, errs.NewMerge("write "+outPath, err)
	}
	stats.RowsOut = len(records)

	m.log.Info().
		Int("files_read", stats.FilesRead).
		Int("files_missing", stats.FilesMissing).
		Int("rows_in", stats.RowsIn).
		Int("rows_out", stats.RowsOut).
		Int("duplicates", stats.Duplicates).
		Int("malformed", stats.Malformed).
		Str("path", outPath).
		Msg("combined listings written")

	return stats, nil
}

// mergeKey identifies a listing across sources: the VIN when the row
// carries one, else the canonical URL. The namespaces keep a VIN from
// ever colliding with a URL. A row with neither cannot be deduped and
// gets an empty key.
func mergeKey(row map[string]string) string {
	if vin := strings.ToUpper(strings.TrimSpace(row["vin"])); vin != "" {
		return "vin:" + vin
	}
	if u := strings.TrimSpace(row["url"]); u != "" {
		return "url:" + helpers.CanonicalURL(u)
	}
	return ""
}

func combinedRecord(source string, row map[string]string) []string {
	record := make([]string, 0, len(storage.CombinedHeader))
	record = append(record, source)
	for _, name := range storage.Header {
		record = append(record, row[name])
	}
	return record
}
