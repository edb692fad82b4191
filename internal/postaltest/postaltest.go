// Package postaltest provides a small geonames-format fixture and an in-memory
// data source for tests.
//
// The fixture holds 26 rows: 20 usable US records around Los Angeles plus a
// few elsewhere, one non-numeric latitude, one non-numeric code, one truncated
// row, one out-of-range latitude, one Mexican row, an unpadded code ("501")
// and a repeated code (60601, the second row wins).
package postaltest

import (
	"bytes"
	"context"
	_ "embed"
	"sync/atomic"
)

//go:embed testdata/US.txt
var US []byte

// Fixture counts.
const (
	Rows       = 26
	Accepted   = 20
	Skipped    = 4
	Excluded   = 1
	Duplicates = 1
)

// Source is a postal.DataSource serving fixed bytes or a fixed error. When
// Gate is set, FetchRaw blocks until Gate is closed or ctx is done.
type Source struct {
	ID   string
	Data []byte
	Err  error
	Gate chan struct{}

	calls atomic.Int32
}

// Fixture returns a Source serving the embedded US fixture.
func Fixture() *Source {
	return &Source{ID: "fixture", Data: US}
}

// Failing returns a Source whose fetch always fails with err.
func Failing(id string, err error) *Source {
	return &Source{ID: id, Err: err}
}

func (s *Source) Name() string { return s.ID }

func (s *Source) FetchRaw(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return bytes.Clone(s.Data), nil
}

// Calls reports how many times FetchRaw ran.
func (s *Source) Calls() int { return int(s.calls.Load()) }
