package postal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/owldoor/zipradius/internal/spatial"
)

// DataSource produces the raw bytes of a postal dataset.
type DataSource interface {
	Name() string
	FetchRaw(ctx context.Context) ([]byte, error)
}

// DefaultFetchTimeout bounds a single data source fetch.
const DefaultFetchTimeout = 30 * time.Second

// Store lazily loads the reference Table from its data sources, tried in
// order until one yields usable content. The load runs at most once at a
// time; the first successful table is kept for the life of the Store. A
// failed load is not remembered, so a later call tries again.
type Store struct {
	sources      []DataSource
	parse        ParseOptions
	kind         spatial.Kind
	fetchTimeout time.Duration
	logger       *zap.Logger

	group singleflight.Group
	table atomic.Pointer[Table]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithParseOptions sets the dataset layout, country filter and code format.
func WithParseOptions(opts ParseOptions) StoreOption {
	return func(s *Store) {
		s.parse = opts
	}
}

// WithIndex selects the spatial index built over the table.
func WithIndex(kind spatial.Kind) StoreOption {
	return func(s *Store) {
		s.kind = kind
	}
}

// WithFetchTimeout bounds each source fetch. Zero or negative disables the bound.
func WithFetchTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.fetchTimeout = d
	}
}

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(sources []DataSource, opts ...StoreOption) *Store {
	s := &Store{
		sources:      sources,
		parse:        DefaultParseOptions(),
		kind:         spatial.KindLinear,
		fetchTimeout: DefaultFetchTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parse.Logger == nil {
		s.parse.Logger = s.logger
	}
	return s
}

// Loaded returns the table if a load has already succeeded.
func (s *Store) Loaded() (*Table, bool) {
	t := s.table.Load()
	return t, t != nil
}

// Load returns the reference table, loading it on first use. Concurrent
// callers share one load. The load itself is detached from ctx so that one
// caller giving up does not fail the others; ctx only bounds this caller's
// wait.
func (s *Store) Load(ctx context.Context) (*Table, error) {
	if t := s.table.Load(); t != nil {
		return t, nil
	}

	ch := s.group.DoChan("load", func() (interface{}, error) {
		if t := s.table.Load(); t != nil {
			return t, nil
		}
		t, err := s.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.table.Store(t)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	}
}

// Get loads the table if needed and looks up code.
func (s *Store) Get(ctx context.Context, code string) (Record, error) {
	t, err := s.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	return t.Lookup(code)
}

func (s *Store) load(ctx context.Context) (*Table, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("%w: no data sources configured", ErrDataUnavailable)
	}

	var errs []error
	for _, src := range s.sources {
		start := time.Now()
		t, err := s.loadFrom(ctx, src)
		if err != nil {
			s.logger.Warn("postal data source failed",
				zap.String("source", src.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		s.logger.Info("postal reference data loaded",
			zap.String("source", src.Name()),
			zap.String("index", string(s.kind)),
			zap.Int("records", t.Len()),
			zap.Int("rows", t.stats.Rows),
			zap.Int("skipped", t.stats.Skipped),
			zap.Int("excluded", t.stats.Excluded),
			zap.Int("duplicates", t.stats.Duplicates),
			zap.Duration("elapsed", time.Since(start)))
		return t, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, errors.Join(errs...))
}

func (s *Store) loadFrom(ctx context.Context, src DataSource) (*Table, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	raw, err := src.FetchRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}

	records, stats, err := Parse(bytes.NewReader(raw), s.parse)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w (%d rows read)", ErrNoRecords, stats.Rows)
	}

	t, err := NewTable(records, s.parse.Format, s.kind)
	if err != nil {
		return nil, err
	}
	t.source = src.Name()
	t.stats = stats
	return t, nil
}
