package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/deploy-engine/api"
	"github.com/warp/deploy-engine/config"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/store/memory"
	"github.com/warp/deploy-engine/store/mongo"
	"github.com/warp/deploy-engine/store/sqlite"
	"github.com/warp/deploy-engine/workforce"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func serveCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	cmd.Flags().Int("port", 0, "HTTP server port")
	cmd.Flags().String("store", "", "Store backend: sqlite, memory or mongo")
	cmd.Flags().String("db", "", "SQLite database path (\":memory:\" for in-memory)")
	cmd.Flags().String("mongo-uri", "", "MongoDB connection string")
	cmd.Flags().Int("horizon", 0, "Compliance look-ahead in days")
	cmd.Flags().String("timezone", "", "IANA zone used to take dates from date-times")
	cmd.Flags().Bool("no-roll", false, "Disable the background status roller")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().Bool("dev", false, "Development logging")
	return cmd
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("store") {
		store, _ := f.GetString("store")
		cfg.Store = config.NormalizeStore(store)
	}
	if f.Changed("db") {
		cfg.DBPath, _ = f.GetString("db")
	}
	if f.Changed("mongo-uri") {
		cfg.MongoURI, _ = f.GetString("mongo-uri")
	}
	if f.Changed("horizon") {
		cfg.HorizonDays, _ = f.GetInt("horizon")
	}
	if f.Changed("timezone") {
		cfg.Timezone, _ = f.GetString("timezone")
	}
	if f.Changed("no-roll") {
		noRoll, _ := f.GetBool("no-roll")
		cfg.RollEnabled = !noRoll
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("dev") {
		cfg.Dev, _ = f.GetBool("dev")
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore returns the configured store and a closer for it.
func openStore(ctx context.Context, cfg config.Config) (workforce.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), func() error { return nil }, nil
	case config.StoreMongo:
		client, store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return client.Disconnect(context.Background()) }, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, _ := cfg.Location()
	generic.SetLocation(loc)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	svc := workforce.NewService(store, workforce.NewBus(api.EventLogger(logger)))
	svc.HorizonDays = cfg.HorizonDays

	roller := api.NewStatusRoller(svc, logger)
	roller.CheckInterval = cfg.RollInterval
	roller.Enabled = cfg.RollEnabled

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSOrigins})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	roller.Start(runCtx)
	defer roller.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store),
			zap.Int("horizon_days", cfg.HorizonDays),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-runCtx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
