package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/internal/dbg"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource/duckdb"
	"github.com/wentam/simbroker/pkg/datasource/historical"
)

func readAll(paths []string) (map[string][]historical.BinaryBar, error) {
	all := make(map[string][]historical.BinaryBar)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		bars, err := historical.ReadBarCSV(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for symbol, series := range bars {
			all[symbol] = append(all[symbol], series...)
		}
	}

	for symbol, series := range all {
		sort.SliceStable(series, func(i, j int) bool { return series[i].TimeStamp < series[j].TimeStamp })

		deduped := series[:0]
		for _, bar := range series {
			if n := len(deduped); n > 0 && deduped[n-1].TimeStamp == bar.TimeStamp {
				deduped[n-1] = bar
				continue
			}
			deduped = append(deduped, bar)
		}
		all[symbol] = deduped
	}
	return all, nil
}

func dumpIt(dir, symbol string, bars []historical.BinaryBar) (err error) {
	path := filepath.Join(dir, strings.ToUpper(symbol)+".bin")
	binFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := binFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return historical.WriteBars(binFile, bars)
}

func importIt(ctx context.Context, dsn string, all map[string][]historical.BinaryBar) error {
	store, err := duckdb.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	for symbol, series := range all {
		bars := make([]common.Bar, len(series))
		for i, entry := range series {
			entry.ToBar(&bars[i])
			bars[i].Symbol = strings.ToUpper(symbol)
		}
		if err := store.InsertBars(ctx, bars...); err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
	}
	return nil
}

func main() {
	out := flag.String("out", ".", "directory receiving one <SYMBOL>.bin file per ticker")
	dsn := flag.String("duckdb", "", "also load the bars into this duckdb database")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := dbg.NewLogger(dbg.FormatConsole, *level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if flag.NArg() == 0 {
		logger.Fatal("at least one csv file is required")
	}

	all, err := readAll(flag.Args())
	if err != nil {
		logger.Fatal("unable to read bars", zap.Error(err))
	}

	for symbol, bars := range all {
		if err := dumpIt(*out, symbol, bars); err != nil {
			logger.Fatal("failed to dump", zap.String("symbol", symbol), zap.Error(err))
		}
		logger.Info("dump finished", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
	}

	if *dsn != "" {
		if err := importIt(context.Background(), *dsn, all); err != nil {
			logger.Fatal("failed to import into duckdb", zap.String("dsn", *dsn), zap.Error(err))
		}
		logger.Info("import finished", zap.String("dsn", *dsn))
	}

	logger.Info("done", zap.Int("symbols", len(all)))
}
