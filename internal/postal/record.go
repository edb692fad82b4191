// Package postal holds the postal code reference data: the row parser, the
// immutable lookup table built from it, and the Store that loads the table
// once from an ordered list of data sources.
package postal

import (
	"errors"
	"strings"

	"github.com/owldoor/zipradius/internal/geo"
)

var (
	// ErrDataUnavailable reports that no configured data source produced a
	// usable reference table.
	ErrDataUnavailable = errors.New("postal reference data unavailable")
	// ErrNotFound reports a well-formed code with no record.
	ErrNotFound = errors.New("postal code not found")
	// ErrMalformedCode reports a code that cannot be normalised.
	ErrMalformedCode = errors.New("malformed postal code")
	// ErrNoRecords reports source content without a single valid row.
	ErrNoRecords = errors.New("no valid postal records")
)

// Record is one postal code with its locality and coordinates.
type Record struct {
	Code       string  `json:"code"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	RegionName string  `json:"regionName,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

func (r Record) Point() geo.Point {
	return geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}
}

// CodeFormat describes the fixed shape of postal codes in the dataset.
type CodeFormat struct {
	Width   int  // zero-padded width, 0 for free-form codes
	Numeric bool // digits only
}

// USZipFormat is the five digit US ZIP code.
var USZipFormat = CodeFormat{Width: 5, Numeric: true}

// Normalize trims raw, drops a ZIP+4 style suffix for numeric codes and pads
// the result with leading zeros to the format width.
func (f CodeFormat) Normalize(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if f.Numeric {
		if base, ext, ok := strings.Cut(code, "-"); ok && isDigits(ext) {
			code = base
		}
	}
	if code == "" {
		return "", ErrMalformedCode
	}
	if f.Numeric && !isDigits(code) {
		return "", ErrMalformedCode
	}
	if !f.Numeric {
		code = strings.ToUpper(code)
	}
	if f.Width > 0 {
		if len(code) > f.Width {
			return "", ErrMalformedCode
		}
		if f.Numeric && len(code) < f.Width {
			code = strings.Repeat("0", f.Width-len(code)) + code
		}
	}
	return code, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
