package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/api"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/config"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/logger"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	redisclient "github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/redis"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("timezone", cfg.ClinicTimezone).Msg("api-server starting up")

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

	if cfg.AutoMigrate {
		if err := db.Migrate(rootCtx, pgPool, log); err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := []api.DependencyCheck{api.PostgresCheck(pgPool)}
	visitOpts := []visit.Option{
		visit.WithLogger(log),
		visit.WithMetrics(m),
		visit.WithClock(visit.NewClock(cfg.Location(), nil)),
		visit.WithMaxAttempts(cfg.SequenceMaxAttempts),
	}

	// Redis only carries notifications; the queue keeps working without it.
	var events api.EventSubscriber
	rdb, err := redisclient.NewClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, visit events will not be published")
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Msg("connected to Redis")

		bus := redisclient.NewEventBus(rdb, log)
		events = bus
		checks = append(checks, api.RedisCheck(rdb))
		visitOpts = append(visitOpts, visit.WithPublisher(bus))
	}

	patients := patient.NewRegistry(patient.NewPgRepository(pgPool), log)
	dir := directory.NewService(directory.NewPgRepository(pgPool), cfg.DirectoryCacheTTL, log)
	visitRepo := visit.NewPgRepository(pgPool)
	visits := visit.NewService(visitRepo, patients, dir, visitOpts...)
	projection := visit.NewProjection(visitRepo, visits.Clock(), m, log)

	router := api.NewRouter(api.RouterConfig{
		Patients:  patients,
		Directory: dir,
		Visits:    visits,
		Queue:     projection,
		Events:    events,
		Today:     visits.Clock().Today,
		Checks:    checks,
		Metrics:   m,
		Gatherer:  reg,
		Logger:    log,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
