package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orphifund/config"
	"orphifund/core/events"
	"orphifund/core/state"
	"orphifund/jobs"
	"orphifund/native/matrix"
	"orphifund/native/token"
	"orphifund/observability/logging"
	"orphifund/rpc"
	"orphifund/services/indexer"
	"orphifund/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ORPHIFUND_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup("orphifundd", env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	ledger := token.NewLedger(cfg.Owner())
	ledger.SetState(manager)

	engine, err := matrix.NewEngine(matrix.DefaultPlanParams(), cfg.Owner(), cfg.Module(), cfg.Admin())
	if err != nil {
		logger.Error("invalid plan parameters", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(manager)
	engine.SetToken(ledger)

	broadcaster := events.NewBroadcaster()
	engine.SetEmitter(broadcaster)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := engine.LoadRoot(); err != nil {
		if !errors.Is(err, matrix.ErrNotInitialised) {
			logger.Error("failed to load matrix root", slog.Any("error", err))
			os.Exit(1)
		}
		if err := engine.InitialiseRoot(cfg.Root()); err != nil {
			logger.Error("failed to initialise matrix root", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("matrix root initialised", slog.String("root", cfg.RootAddress))
	}

	if cfg.IndexerEnabled {
		ix, err := indexer.Open(cfg.IndexerDBPath, broadcaster, logger)
		if err != nil {
			logger.Error("failed to open indexer", slog.Any("error", err))
			os.Exit(1)
		}
		go ix.Run(ctx)
		logger.Info("indexer started", slog.String("path", cfg.IndexerDBPath))
	}

	var scheduler *jobs.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = jobs.NewScheduler(engine, cfg.Owner(), logger)
		if err := scheduler.Start(cfg.GHPCronSpec, cfg.LeaderCronSpec); err != nil {
			logger.Error("failed to start scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	auth := rpc.NewAuthenticator(cfg.AdminJWTSecret, cfg.AdminJWTIssuer, cfg.AdminJWTAudience)
	server := rpc.NewServer(engine, ledger, broadcaster, auth, cfg.Owner(), logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", slog.String("address", cfg.ListenAddress))
		errCh <- server.Start(cfg.ListenAddress)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("rpc server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
