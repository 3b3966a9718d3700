package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/datasource/calendar"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const storeComponentName = "datasource.duckdb.store"

var schema = []string{`
CREATE TABLE IF NOT EXISTS bars (
	symbol VARCHAR NOT NULL,
	ts     TIMESTAMP NOT NULL,
	open   DOUBLE NOT NULL,
	close  DOUBLE NOT NULL,
	high   DOUBLE NOT NULL,
	low    DOUBLE NOT NULL,
	volume DOUBLE NOT NULL,
	PRIMARY KEY (symbol, ts)
)`, `
CREATE TABLE IF NOT EXISTS calendar (
	open  TIMESTAMP NOT NULL,
	close TIMESTAMP NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS assets (
	symbol         VARCHAR PRIMARY KEY,
	marginable     BOOLEAN NOT NULL,
	easy_to_borrow BOOLEAN NOT NULL,
	shortable      BOOLEAN NOT NULL,
	borrow_rate    DOUBLE NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS fills (
	order_id     BIGINT NOT NULL,
	position_id  BIGINT NOT NULL,
	symbol       VARCHAR NOT NULL,
	qty          BIGINT NOT NULL,
	price        DOUBLE NOT NULL,
	ts           TIMESTAMP NOT NULL,
	execution_id VARCHAR NOT NULL
)`}

// Store is a DuckDB backed bar store which also holds the trading calendar and asset flags.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

type Option func(*Store)

// WithQueryTimeout bounds the bar queries issued through the BarStore interface, which carries
// no context of its own.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.queryTimeout = d
	}
}

// Open connects to dataSourceName ("" for an in-memory database) and creates missing tables.
func Open(ctx context.Context, dataSourceName string, options ...Option) (*Store, error) {
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to open duckdb %q: %w", dataSourceName, err)
	}

	s := &Store{db: db, queryTimeout: 30 * time.Second}
	for _, option := range options {
		option(s)
	}

	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("unable to create schema: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryContext() (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.queryTimeout)
}

func (s *Store) InsertBars(ctx context.Context, bars ...common.Bar) error {
	return s.inTx(ctx, `INSERT OR REPLACE INTO bars VALUES (?, ?, ?, ?, ?, ?, ?)`, len(bars), func(stmt *sql.Stmt, i int) error {
		b := bars[i]
		_, err := stmt.ExecContext(ctx, b.Symbol, b.TimeStamp.UTC(), toFloat64(b.Open), toFloat64(b.Close), toFloat64(b.High), toFloat64(b.Low), toFloat64(b.Volume))
		return err
	})
}

func (s *Store) InsertSessions(ctx context.Context, sessions ...calendar.Session) error {
	return s.inTx(ctx, `INSERT INTO calendar VALUES (?, ?)`, len(sessions), func(stmt *sql.Stmt, i int) error {
		_, err := stmt.ExecContext(ctx, sessions[i].Open.UTC(), sessions[i].Close.UTC())
		return err
	})
}

func (s *Store) InsertAssets(ctx context.Context, assets ...datasource.Asset) error {
	return s.inTx(ctx, `INSERT OR REPLACE INTO assets VALUES (?, ?, ?, ?, ?)`, len(assets), func(stmt *sql.Stmt, i int) error {
		a := assets[i]
		_, err := stmt.ExecContext(ctx, a.Symbol, a.Marginable, a.EasyToBorrow, a.Shortable, toFloat64(a.BorrowRate))
		return err
	})
}

// InsertFills journals order fills next to the market data they were simulated from.
func (s *Store) InsertFills(ctx context.Context, fills ...common.OrderFilled) error {
	return s.inTx(ctx, `INSERT INTO fills VALUES (?, ?, ?, ?, ?, ?, ?)`, len(fills), func(stmt *sql.Stmt, i int) error {
		f := fills[i]
		_, err := stmt.ExecContext(ctx, f.OriginalOrder.Id, f.PositionId, f.OriginalOrder.Symbol, f.Qty, toFloat64(f.Price), f.TimeStamp.UTC(), f.ExecutionId.String())
		return err
	})
}

// Fills returns the journaled fills of one execution in insertion order.
func (s *Store) Fills(ctx context.Context, executionId utility.ExecutionID) ([]common.OrderFilled, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, position_id, symbol, qty, price, ts FROM fills WHERE execution_id = ? ORDER BY ts, rowid`,
		executionId.String())
	if err != nil {
		return nil, fmt.Errorf("error querying fills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fills []common.OrderFilled
	for rows.Next() {
		var f common.OrderFilled
		var price float64
		if err := rows.Scan(&f.OriginalOrder.Id, &f.PositionId, &f.OriginalOrder.Symbol, &f.Qty, &price, &f.TimeStamp); err != nil {
			return nil, fmt.Errorf("error scanning fill: %w", err)
		}
		f.Price = fixed.FromFloat64(price)
		f.TimeStamp = f.TimeStamp.UTC()
		f.ExecutionId = executionId
		f.Source = storeComponentName
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return fills, nil
}

func (s *Store) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("error inserting row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *Store) MinuteBars(symbol string, from, to time.Time) ([]common.Bar, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, close, high, low, volume FROM bars WHERE symbol = ? AND ts >= ? AND ts < ? ORDER BY ts`,
		symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("error querying %s bars: %w", symbol, err)
	}
	defer func() { _ = rows.Close() }()

	var bars []common.Bar
	for rows.Next() {
		bar, err := s.scanBar(symbol, rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return bars, nil
}

func (s *Store) LastBar(symbol string, t time.Time) (common.Bar, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT ts, open, close, high, low, volume FROM bars WHERE symbol = ? AND ts <= ? ORDER BY ts DESC LIMIT 1`,
		symbol, t.UTC())
	bar, err := s.scanBar(symbol, row)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Bar{}, fmt.Errorf("%s at %s: %w", symbol, t.Format(time.RFC3339), datasource.ErrNoBar)
	}
	return bar, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanBar(symbol string, row scanner) (common.Bar, error) {
	var ts time.Time
	var open, closing, high, low, volume float64
	if err := row.Scan(&ts, &open, &closing, &high, &low, &volume); err != nil {
		return common.Bar{}, fmt.Errorf("error scanning %s bar: %w", symbol, err)
	}
	return common.Bar{
		Source:      storeComponentName,
		Symbol:      symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   ts.UTC(),
		Period:      common.MinuteBarPeriod,
		Open:        fixed.FromFloat64(open),
		Close:       fixed.FromFloat64(closing),
		High:        fixed.FromFloat64(high),
		Low:         fixed.FromFloat64(low),
		Volume:      fixed.FromFloat64(volume),
	}, nil
}

func (s *Store) Sessions(ctx context.Context) ([]calendar.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT open, close FROM calendar ORDER BY open`)
	if err != nil {
		return nil, fmt.Errorf("error querying calendar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []calendar.Session
	for rows.Next() {
		var session calendar.Session
		if err := rows.Scan(&session.Open, &session.Close); err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}
		session.Open, session.Close = session.Open.UTC(), session.Close.UTC()
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return sessions, nil
}

func (s *Store) Assets(ctx context.Context) (datasource.AssetTable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, marginable, easy_to_borrow, shortable, borrow_rate FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("error querying assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := datasource.NewAssetTable()
	for rows.Next() {
		var a datasource.Asset
		var rate float64
		if err := rows.Scan(&a.Symbol, &a.Marginable, &a.EasyToBorrow, &a.Shortable, &rate); err != nil {
			return nil, fmt.Errorf("error scanning asset: %w", err)
		}
		a.BorrowRate = fixed.FromFloat64(rate)
		table[a.Symbol] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return table, nil
}

// DataSource assembles a complete StockDataSource from the three tables.
func (s *Store) DataSource(ctx context.Context, options ...datasource.CompositeOption) (*datasource.Composite, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := calendar.New(sessions)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar: %w", err)
	}
	assets, err := s.Assets(ctx)
	if err != nil {
		return nil, err
	}
	return datasource.NewComposite(s, cal, assets, options...), nil
}

func toFloat64(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}

var _ datasource.BarStore = (*Store)(nil)
