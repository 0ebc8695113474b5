// Command activityguard serves the user-activity anomaly engine over HTTP.
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/engine"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/geoip"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/learner"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/recommend"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

var (
	configPath  string
	addr        string
	redisAddr   string
	redisPrefix string
	geoipDB     string
	logLevel    string
	seed        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "activityguard",
		Short: "User-activity anomaly detection service",
		Long: `activityguard scores batches of user activity records against per-user and
global behavioral baselines, turns the results into security recommendations,
and learns threat-pattern confidence from analyst feedback.`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML options file")
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	rootCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address; in-memory storage when empty")
	rootCmd.Flags().StringVar(&redisPrefix, "redis-prefix", "activityguard", "Redis key prefix")
	rootCmd.Flags().StringVar(&geoipDB, "geoip-db", "", "Path to a GeoLite2-City .mmdb file for country enrichment")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&seed, "seed", true, "Insert the built-in threat patterns on startup")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	opts, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var enricher Enricher
	if geoipDB != "" {
		geo, err := geoip.NewService(geoipDB, logger)
		if err != nil {
			return err
		}
		defer geo.Close()
		enricher = geo
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	srv := &Server{
		logger:    logger,
		engine:    engine.New(opts, logger, engine.WithMetrics(metrics)),
		generator: recommend.New(opts, logger, recommend.WithMetrics(metrics)),
		learner:   learner.New(store, store, opts, logger, learner.WithMetrics(metrics)),
		records:   store,
		enricher:  enricher,
		gatherer:  registry,
	}

	if seed {
		n, err := srv.learner.Seed(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed patterns: %w", err)
		}
		logger.Info("Seed patterns checked", zap.Int("inserted", n))
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, logger *zap.Logger) (storage.Store, func(), error) {
	if redisAddr == "" {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	store := storage.NewRedisStore(rdb, redisPrefix, logger)
	if err := store.Ping(ctx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", redisAddr, err)
	}
	logger.Info("Using Redis storage", zap.String("addr", redisAddr), zap.String("prefix", redisPrefix))
	return store, func() { rdb.Close() }, nil
}
