package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/config"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/logger"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	redisclient "github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/redis"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

const sweepLock = "stale-visit-sweep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("worker", "sweeper").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("sweeper starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	patients := patient.NewRegistry(patient.NewPgRepository(pgPool), log)
	dir := directory.NewService(directory.NewPgRepository(pgPool), cfg.DirectoryCacheTTL, log)
	svc := visit.NewService(visit.NewPgRepository(pgPool), patients, dir,
		visit.WithLogger(log),
		visit.WithMetrics(metrics.NewNop()),
		visit.WithClock(visit.NewClock(cfg.Location(), nil)),
		visit.WithPublisher(redisclient.NewEventBus(rdb, log)),
	)
	locker := redisclient.NewLocker(rdb, cfg.LockTTL)

	// Run once at startup
	runOnce(rootCtx, log, locker, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, log, locker, svc)
		}
	}
}

// runOnce sweeps under a cluster wide lock so replicas do not race each other.
func runOnce(ctx context.Context, log zerolog.Logger, locker redisclient.Locker, svc *visit.Service) {
	start := time.Now()

	var closed int
	err := locker.WithLock(ctx, sweepLock, func(lockCtx context.Context) error {
		var err error
		closed, err = svc.CloseStaleVisits(lockCtx)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		log.Debug().Msg("another sweeper holds the lock, skipping run")
	case err != nil:
		log.Error().Err(err).Msg("sweep run error")
	default:
		log.Info().Int("closed", closed).Dur("took", time.Since(start)).Msg("sweep run complete")
	}
}
