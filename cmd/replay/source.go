package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/datasource/calendar"
	"github.com/wentam/simbroker/pkg/datasource/duckdb"
	"github.com/wentam/simbroker/pkg/datasource/historical"
	"github.com/wentam/simbroker/pkg/datasource/memory"
	"github.com/wentam/simbroker/pkg/datasource/synthetic"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource builds the market data for the scenario. DuckDB brings its own calendar and
// assets; the other sources use generated weekday sessions and the scenario's asset list.
// Sessions run one day past the end so that post market and day order expiry resolve.
func openSource(ctx context.Context, logger *zap.Logger, s *Scenario) (datasource.StockDataSource, io.Closer, error) {
	if s.DuckDB != "" {
		store, err := duckdb.Open(ctx, s.DuckDB)
		if err != nil {
			return nil, nil, err
		}
		source, err := store.DataSource(ctx)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("using duckdb data source", zap.String("dsn", s.DuckDB))
		return source, store, nil
	}

	sessions := calendar.Sessions(s.Start.AddDate(0, 0, -1), s.End.AddDate(0, 0, 2), s.OpenOffset, s.CloseOffset)
	cal, err := calendar.New(sessions)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid calendar: %w", err)
	}

	if s.Historical != "" {
		store := historical.NewStore(s.Historical)
		logger.Info("using historical data source", zap.String("dir", s.Historical), zap.Int("sessions", len(sessions)))
		return datasource.NewComposite(store, cal, s.Assets), store, nil
	}

	rng := rand.New(rand.NewSource(s.Seed))
	store := memory.NewStore()
	for _, sym := range s.Synthetic {
		generator := synthetic.NewLargeCapGenerator(sym.symbol, rng, sym.price, sym.mu, sym.sigma)
		if sym.penny {
			generator = synthetic.NewPennyStockGenerator(sym.symbol, rng, sym.price, sym.mu, sym.sigma)
		}
		store.Add(generator.Sessions(sessions...)...)
	}
	logger.Info("using synthetic data source", zap.Int("symbols", len(s.Synthetic)), zap.Int64("seed", s.Seed))
	return datasource.NewComposite(store, cal, s.Assets), nopCloser{}, nil
}
