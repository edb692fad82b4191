// Package proximity answers radius queries around a postal code.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/geo"
	"github.com/owldoor/zipradius/internal/postal"
)

// ReferenceStore supplies the loaded postal table.
type ReferenceStore interface {
	Load(ctx context.Context) (*postal.Table, error)
}

// Request is a radius query.
type Request struct {
	CenterCode  string  `json:"centerCode"`
	RadiusMiles float64 `json:"radiusMiles"`
}

// Result is one postal code inside the radius.
type Result struct {
	Code          string  `json:"code"`
	City          string  `json:"city"`
	Region        string  `json:"region"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DistanceMiles float64 `json:"distanceMiles"`
}

// Response is the answer to a Request, nearest result first.
type Response struct {
	CenterCode          string    `json:"centerCode"`
	CenterCity          string    `json:"centerCity"`
	CenterRegion        string    `json:"centerRegion"`
	CenterCoordinates   geo.Point `json:"centerCoordinates"`
	RadiusMiles         float64   `json:"radiusMiles"`
	TotalRecordsScanned int       `json:"totalRecordsScanned"`
	MatchCount          int       `json:"matchCount"`
	Results             []Result  `json:"results"`
}

// Service runs proximity queries against a ReferenceStore.
type Service struct {
	store          ReferenceStore
	format         postal.CodeFormat
	maxRadiusMiles float64
	logger         *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxRadius rejects radii above miles. Zero means no limit.
func WithMaxRadius(miles float64) Option {
	return func(s *Service) {
		s.maxRadiusMiles = miles
	}
}

// WithCodeFormat sets the format center codes must satisfy. It should match
// the format the store parses with. The default is postal.USZipFormat.
func WithCodeFormat(format postal.CodeFormat) Option {
	return func(s *Service) {
		s.format = format
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store ReferenceStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		format: postal.USZipFormat,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns every reference record within req.RadiusMiles of the center
// code, sorted by ascending distance with ties in reference data order.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	if err := s.validateRadius(req.RadiusMiles); err != nil {
		return nil, err
	}
	if err := s.validateCode(req.CenterCode); err != nil {
		return nil, err
	}

	table, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	center, err := s.resolveCenter(table, req.CenterCode)
	if err != nil {
		return nil, err
	}

	matches, scanned := table.Within(center.Point(), req.RadiusMiles)
	results := make([]Result, len(matches))
	for i, m := range matches {
		rec := table.At(m.Pos)
		results[i] = Result{
			Code:          rec.Code,
			City:          rec.City,
			Region:        rec.Region,
			Latitude:      rec.Latitude,
			Longitude:     rec.Longitude,
			DistanceMiles: m.DistanceMiles,
		}
	}

	s.logger.Debug("proximity query",
		zap.String("center", center.Code),
		zap.Float64("radius_miles", req.RadiusMiles),
		zap.Int("scanned", scanned),
		zap.Int("matches", len(results)))

	return &Response{
		CenterCode:          center.Code,
		CenterCity:          center.City,
		CenterRegion:        center.Region,
		CenterCoordinates:   center.Point(),
		RadiusMiles:         req.RadiusMiles,
		TotalRecordsScanned: scanned,
		MatchCount:          len(results),
		Results:             results,
	}, nil
}

// Lookup returns the reference record for a single code.
func (s *Service) Lookup(ctx context.Context, code string) (postal.Record, error) {
	if err := s.validateCode(code); err != nil {
		return postal.Record{}, err
	}
	table, err := s.store.Load(ctx)
	if err != nil {
		return postal.Record{}, err
	}
	return s.resolveCenter(table, code)
}

func (s *Service) validateRadius(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: radius must be a finite number of miles", ErrInvalidInput)
	}
	if r <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidInput, r)
	}
	if s.maxRadiusMiles > 0 && r > s.maxRadiusMiles {
		return fmt.Errorf("%w: radius %v exceeds the %v mile limit", ErrInvalidInput, r, s.maxRadiusMiles)
	}
	return nil
}

// validateCode rejects malformed codes without loading the store.
func (s *Service) validateCode(code string) error {
	if _, err := s.format.Normalize(code); err != nil {
		return fmt.Errorf("%w: %w: %q", ErrInvalidInput, err, code)
	}
	return nil
}

func (s *Service) resolveCenter(table *postal.Table, code string) (postal.Record, error) {
	rec, err := table.Lookup(code)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, postal.ErrMalformedCode):
		return postal.Record{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, postal.ErrNotFound):
		return postal.Record{}, fmt.Errorf("%w: %s", ErrCenterNotFound, code)
	default:
		return postal.Record{}, err
	}
}
