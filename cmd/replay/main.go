package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/internal/dbg"
	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/datasource/duckdb"
	"github.com/wentam/simbroker/pkg/exchange/sandbox"
	"github.com/wentam/simbroker/pkg/middleware"
	"github.com/wentam/simbroker/pkg/simulation"
	"github.com/wentam/simbroker/pkg/utility"
)

const (
	RouterEventCapacity = 4096
	MonitorFlags        = middleware.MonitorOrdersAccepted | middleware.MonitorOrdersRejected |
		middleware.MonitorOrdersFilled | middleware.MonitorOrdersCancelled | middleware.MonitorOrdersExpired |
		middleware.MonitorMarginCalls | middleware.MonitorInterest | middleware.MonitorPatternDayTrader
	SnapshotInterval = time.Hour
	StreamBacklog    = 128
)

func main() {
	scenarioPath := flag.String("scenario", "scenario.yaml", "scenario file")
	journalDSN := flag.String("journal", "", "duckdb database recording every fill")
	listen := flag.String("listen", "", "serve the event stream over websocket on this address")
	logFormat := flag.String("log-format", dbg.FormatConsole, "console or json")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := dbg.NewLogger(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *scenarioPath, *journalDSN, *listen); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("replay interrupted")
			return
		}
		logger.Fatal("replay failed", zap.Error(err))
	}
	logger.Info("done")
}

func run(ctx context.Context, logger *zap.Logger, scenarioPath, journalDSN, listen string) error {
	scenario, err := LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	executionId := utility.NewExecution()
	logger.Info("replay", zap.Stringer("execution_id", executionId), zap.String("scenario", scenarioPath))

	source, closer, err := openSource(ctx, logger, scenario)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer.Close()
	}()

	router := bus.NewRouter(logger.Named("router"), RouterEventCapacity)
	monitor := middleware.NewMonitor(logger.Named("monitor"), MonitorFlags)
	performance := middleware.NewPerformance(logger.Named("performance"))
	stream := middleware.NewStream(logger.Named("stream"), middleware.WithBacklog(StreamBacklog))
	audit := simulation.NewAudit(SnapshotInterval, scenario.StartingBalance)

	fillWrappers := []func(bus.OrderFilledEventHandler) bus.OrderFilledEventHandler{
		performance.WithOrderFilled, monitor.WithOrderFilled, stream.WithOrderFilled, audit.WithOrderFilled,
	}
	if journalDSN != "" {
		store, err := duckdb.Open(ctx, journalDSN)
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()
		fillWrappers = append(fillWrappers, middleware.NewJournal(logger.Named("journal"), store).WithOrderFilled)
	}

	router.OnBar = middleware.Chain(performance.WithBar, monitor.WithBar)(middleware.NoopBarHdl)
	router.OnEquity = middleware.Chain(performance.WithEquity, monitor.WithEquity, stream.WithEquity, audit.WithEquity)(middleware.NoopEquityHdl)
	router.OnBalance = middleware.Chain(performance.WithBalance, monitor.WithBalance, stream.WithBalance, audit.WithBalance)(middleware.NoopBalanceHdl)
	router.OnOrderAcceptance = middleware.Chain(performance.WithOrderAccepted, monitor.WithOrderAccepted, stream.WithOrderAccepted)(middleware.NoopOrderAccHdl)
	router.OnOrderRejection = middleware.Chain(performance.WithOrderRejected, monitor.WithOrderRejected, stream.WithOrderRejected)(middleware.NoopOrderRjctHdl)
	router.OnOrderFilled = middleware.Chain(fillWrappers...)(middleware.NoopOrderFillHdl)
	router.OnOrderCancel = middleware.Chain(performance.WithOrderCancelled, monitor.WithOrderCancelled, stream.WithOrderCancelled)(middleware.NoopOrderCnclHdl)
	router.OnOrderExpired = middleware.Chain(performance.WithOrderExpired, monitor.WithOrderExpired, stream.WithOrderExpired)(middleware.NoopOrderExpHdl)
	router.OnMarginCall = middleware.Chain(performance.WithMarginCall, monitor.WithMarginCall, stream.WithMarginCall, audit.WithMarginCall)(middleware.NoopMarginCallHdl)
	router.OnInterestCharged = middleware.Chain(performance.WithInterestCharged, monitor.WithInterestCharged, stream.WithInterestCharged, audit.WithInterestCharged)(middleware.NoopInterestHdl)
	router.OnPatternDayTrader = middleware.Chain(performance.WithPatternDayTrader, monitor.WithPatternDayTrader, stream.WithPatternDayTrader)(middleware.NoopPatternDayTrHdl)

	if listen != "" {
		server := &http.Server{Addr: listen, Handler: stream, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("event stream server failed", zap.Error(err))
			}
		}()
		defer func() {
			_ = stream.Close()
			_ = server.Close()
		}()
		logger.Info("streaming events", zap.String("addr", listen))
	}

	sim := sandbox.NewSimulator(logger, source, scenario.Start, scenario.Margin, simulatorOptions(scenario, router)...)
	sim.SetPDTCallHandler(func() {
		logger.Warn("account flagged as pattern day trader", zap.Time("clock", sim.Clock()))
	})

	runner := newRunner(logger, scenario.Actions)
	executor := simulation.NewExecutor(logger, sim, router, scenario.End, scenario.Step)

	runErr := executor.Run(ctx, runner.step)
	router.Drain(context.Background())

	if n := runner.pending(); n > 0 {
		logger.Warn("actions not applied", zap.Int("count", n))
	}
	for _, position := range sim.Positions() {
		logger.Info("open position", zap.Any("position", position))
	}
	router.Statistics().Print(logger)
	performance.Print()

	if report, err := audit.GenerateReport(); err == nil {
		report.Print(logger)
	} else {
		logger.Warn("no report", zap.Error(err))
	}

	return runErr
}

func simulatorOptions(s *Scenario, router *bus.Router) []sandbox.Option {
	options := []sandbox.Option{
		sandbox.WithRouter(router),
		sandbox.WithStartingBalance(s.StartingBalance),
		sandbox.WithInstaFill(s.InstaFill),
	}
	if s.InitialMargin != nil {
		options = append(options, sandbox.WithInitialMarginRequirement(*s.InitialMargin))
	}
	if s.MaintenanceMargin != nil {
		options = append(options, sandbox.WithMaintenanceMarginRequirement(*s.MaintenanceMargin))
	}
	if s.InterestRate != nil {
		options = append(options, sandbox.WithInterestRate(*s.InterestRate))
	}
	if s.ShortRoundLotFee != nil {
		options = append(options, sandbox.WithShortRoundLotFee(*s.ShortRoundLotFee))
	}
	if s.VolumeFillModel {
		options = append(options, sandbox.WithFillRateEstimator(sandbox.VolumeFillRate))
	}
	return options
}
