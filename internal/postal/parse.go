package postal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/geo"
)

// Layout gives the column offsets of a delimited postal dataset.
type Layout struct {
	Delimiter  rune
	Country    int // -1 when the dataset has no country column
	Code       int
	City       int
	RegionName int // -1 when absent
	RegionCode int
	Latitude   int
	Longitude  int
}

// GeonamesLayout is the tab separated layout of the geonames postal code dumps
// (https://download.geonames.org/export/zip/), e.g. US.txt:
//
//	country, postal code, place name, admin name1, admin code1, admin name2,
//	admin code2, admin name3, admin code3, latitude, longitude, accuracy
var GeonamesLayout = Layout{
	Delimiter:  '\t',
	Country:    0,
	Code:       1,
	City:       2,
	RegionName: 3,
	RegionCode: 4,
	Latitude:   9,
	Longitude:  10,
}

func (l Layout) width() int {
	return max(l.Country, l.Code, l.City, l.RegionName, l.RegionCode, l.Latitude, l.Longitude) + 1
}

// ParseOptions controls how rows become records.
type ParseOptions struct {
	Layout Layout
	// Country keeps only rows whose country column equals it. Empty keeps all.
	Country string
	Format  CodeFormat
	Logger  *zap.Logger
}

// DefaultParseOptions reads geonames US data.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		Layout:  GeonamesLayout,
		Country: "US",
		Format:  USZipFormat,
	}
}

// ParseStats counts what happened to each row of a dataset.
type ParseStats struct {
	Rows       int `json:"rows"`
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
	Excluded   int `json:"excluded"`
	Duplicates int `json:"duplicates"`
}

// Parse reads delimited postal rows. Rows without a valid code or with
// coordinates that are not finite and in range are skipped; rows for another
// country are excluded. Neither aborts the parse. When a code repeats, the
// later row's data replaces the earlier record in place.
//
// Only a failure of the underlying reader is returned as an error.
func Parse(r io.Reader, opts ParseOptions) ([]Record, ParseStats, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	layout := opts.Layout
	if layout.Delimiter == 0 {
		layout.Delimiter = '\t'
	}
	need := layout.width()

	// read tsv content from the reader
	csvReader := csv.NewReader(r)
	csvReader.Comma = layout.Delimiter
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.ReuseRecord = true

	var (
		records []Record
		stats   ParseStats
		seen    = make(map[string]int)
	)
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.Skipped++
				log.Debug("skipping unreadable row", zap.Error(err))
				continue
			}
			return nil, stats, fmt.Errorf("reading postal rows: %w", err)
		}
		stats.Rows++

		if len(row) < need {
			stats.Skipped++
			log.Debug("skipping short row", zap.Int("line", stats.Rows), zap.Int("columns", len(row)))
			continue
		}
		if layout.Country >= 0 && opts.Country != "" && !strings.EqualFold(strings.TrimSpace(row[layout.Country]), opts.Country) {
			stats.Excluded++
			continue
		}

		rec, err := parseRow(row, layout, opts.Format)
		if err != nil {
			stats.Skipped++
			log.Debug("skipping row", zap.Int("line", stats.Rows), zap.String("code", row[layout.Code]), zap.Error(err))
			continue
		}

		if slot, ok := seen[rec.Code]; ok {
			records[slot] = rec
			stats.Duplicates++
			continue
		}
		seen[rec.Code] = len(records)
		records = append(records, rec)
	}
	stats.Accepted = len(records)
	return records, stats, nil
}

func parseRow(row []string, layout Layout, format CodeFormat) (Record, error) {
	code, err := format.Normalize(row[layout.Code])
	if err != nil {
		return Record{}, err
	}

	latitude, err := strconv.ParseFloat(strings.TrimSpace(row[layout.Latitude]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("latitude: %w", err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(row[layout.Longitude]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("longitude: %w", err)
	}
	if !(geo.Point{Latitude: latitude, Longitude: longitude}).Valid() {
		return Record{}, fmt.Errorf("coordinates out of range: %v, %v", latitude, longitude)
	}

	rec := Record{
		Code:      code,
		City:      strings.TrimSpace(row[layout.City]),
		Region:    strings.TrimSpace(row[layout.RegionCode]),
		Latitude:  latitude,
		Longitude: longitude,
	}
	if layout.RegionName >= 0 {
		rec.RegionName = strings.TrimSpace(row[layout.RegionName])
	}
	return rec, nil
}
