package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/appointment-engine/internal/appointment"
	"github.com/clinicore/appointment-engine/internal/config"
	"github.com/clinicore/appointment-engine/internal/db"
	"github.com/clinicore/appointment-engine/internal/queue"
	redisclient "github.com/clinicore/appointment-engine/internal/redis"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "snapshot-worker").Logger()
	logger.Info().Msg("snapshot-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running snapshot worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if err := db.EnsureSchema(rootCtx, pgPool); err != nil {
		logger.Fatal().Err(err).Msg("schema setup error")
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	apptRepo := appointment.NewPgRepository(pgPool)
	snapRepo := queue.NewPgRepository(pgPool)
	cache := redisclient.NewRedisCache(rdb)
	svc := queue.NewService(apptRepo, snapRepo, cache, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping snapshot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *queue.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	// Snapshot yesterday so the measurement window is complete.
	date := time.Now().AddDate(0, 0, -1)

	start := time.Now()
	if err := svc.SnapshotSweep(runCtx, date); err != nil {
		logger.Error().Err(err).Msg("snapshot sweep error")
		return
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("snapshot sweep complete")
}
