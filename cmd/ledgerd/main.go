package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stableledger/config"
	"stableledger/core"
	"stableledger/core/genesis"
	"stableledger/observability"
	"stableledger/observability/logging"
	telemetry "stableledger/observability/otel"
	"stableledger/rpc"
	"stableledger/rpc/middleware"
	"stableledger/storage"
	"stableledger/storage/eventlog"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "ledgerd.toml", "path to ledgerd configuration (.toml or .yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, logCloser := logging.Setup(logging.Options{
		Service:     "ledgerd",
		Environment: cfg.Environment,
		Level:       level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "ledgerd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	spec, err := genesis.LoadGenesisSpec(cfg.GenesisFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	metrics := observability.Ledger()
	journal, err := eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
	if err != nil {
		return err
	}
	defer journal.Close()
	journal.SetLogger(logger.With(slog.String("component", "eventlog")))
	journal.SetRecorder(metrics)

	ledger, err := core.NewLedger(db, spec)
	if err != nil {
		return err
	}
	ledger.SetLogger(logger.With(slog.String("component", "ledger")))
	ledger.SetObserver(metrics)
	ledger.SetEmitter(journal)
	applied, err := ledger.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if !applied {
		last, err := journal.LastSequence(ctx)
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		logger.Info("ledger reopened", slog.Uint64("last_event", last))
	}

	if cfg.Auth.HMACSecret == "" {
		logger.Warn("no auth secret configured; all authenticated endpoints will reject requests")
	}
	httpMetrics := observability.HTTP()
	handler, err := rpc.NewHandler(rpc.Config{
		Ledger: ledger,
		Events: journal,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			HMACSecret:     cfg.Auth.HMACSecret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			ClockSkew:      cfg.Auth.ClockSkew,
			AnonymousReads: cfg.Auth.AnonymousReads,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RatePerSecond: cfg.RateLimit.RatePerSecond,
			Burst:         cfg.RateLimit.Burst,
		}, httpMetrics),
		Observability: middleware.NewObservability(logger, httpMetrics),
		Idempotency:   journal,
		Metrics:       promhttp.Handler(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if cfg.Telemetry.Traces {
		handler = telemetry.WrapHandler(handler, "ledgerd")
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening",
			slog.String("address", cfg.ListenAddress),
			slog.Uint64("chain_id", spec.ChainID),
			slog.String("ledger", spec.LedgerAddress().Hex()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
