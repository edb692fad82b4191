package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/config"
	"github.com/owldoor/zipradius/internal/postal"
	"github.com/owldoor/zipradius/internal/proximity"
	"github.com/owldoor/zipradius/internal/source"
	"github.com/owldoor/zipradius/internal/spatial"
)

// app is the wired reference store and query service.
type app struct {
	store   *postal.Store
	svc     *proximity.Service
	closers []io.Closer
}

func (c *cli) newApp(ctx context.Context) (*app, error) {
	cfg := c.cfg
	sources, closers, err := buildSources(ctx, cfg.Data.Sources, c.logger)
	if err != nil {
		return nil, err
	}

	kind, err := spatial.ParseKind(cfg.Data.Index)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	parse := postal.DefaultParseOptions()
	parse.Country = cfg.Data.Country
	parse.Format.Width = cfg.Data.CodeWidth

	store := postal.NewStore(sources,
		postal.WithParseOptions(parse),
		postal.WithIndex(kind),
		postal.WithFetchTimeout(cfg.GetFetchTimeout()),
		postal.WithLogger(c.logger),
	)
	svc := proximity.NewService(store,
		proximity.WithMaxRadius(cfg.Query.MaxRadiusMiles),
		proximity.WithCodeFormat(parse.Format),
		proximity.WithLogger(c.logger),
	)
	return &app{store: store, svc: svc, closers: closers}, nil
}

func (a *app) Close() error {
	return closeAll(a.closers)
}

// buildSources turns the configured chain into data sources. SQL entries
// open their database here; the returned closers release them.
func buildSources(ctx context.Context, cfgs []config.SourceConfig, logger *zap.Logger) ([]postal.DataSource, []io.Closer, error) {
	var (
		sources []postal.DataSource
		closers []io.Closer
	)
	for i, sc := range cfgs {
		switch sc.Type {
		case config.SourceHTTP:
			sources = append(sources, &source.HTTP{
				URL:       sc.URL,
				Member:    sc.Member,
				CachePath: sc.CachePath,
				Logger:    logger,
			})
		case config.SourceFile:
			sources = append(sources, &source.File{Path: sc.Path, Member: sc.Member})
		case config.SourceSQL:
			db, err := source.OpenSQL(ctx, sc.Driver, sc.DSN)
			if err != nil {
				// an unreachable database is one failed source, not a fatal error
				logger.Warn("skipping sql data source", zap.Int("index", i), zap.Error(err))
				continue
			}
			closers = append(closers, db)
			sources = append(sources, &source.SQL{DB: db, Query: sc.Query, Label: sc.Driver + ":" + redactDSN(sc.DSN)})
		default:
			closeAll(closers)
			return nil, nil, fmt.Errorf("data source %d: invalid source type %q", i, sc.Type)
		}
	}
	return sources, closers, nil
}

// redactDSN masks the credentials in a DSN.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] == '@' {
			return "***" + dsn[i:]
		}
	}
	return dsn
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
