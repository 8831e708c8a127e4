package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicbook/scheduling/internal/api"
	"github.com/clinicbook/scheduling/internal/booking"
	"github.com/clinicbook/scheduling/internal/config"
	"github.com/clinicbook/scheduling/internal/db"
	"github.com/clinicbook/scheduling/internal/logging"
	"github.com/clinicbook/scheduling/internal/notify"
	redisclient "github.com/clinicbook/scheduling/internal/redis"
	"github.com/clinicbook/scheduling/internal/reminder"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("api-server", "dev")
		bootLog.Fatal().Err(err).Msg("config load")
	}

	log := logging.New("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	clock := booking.SystemClock()
	dispatcher := notify.NewLogDispatcher(log.With().Str("component", "dispatcher").Logger())

	svc := booking.NewService(repo, locker, dispatcher, clock, cfg, log.With().Str("component", "booking").Logger())

	// The reminder sweep runs in-process; the standalone reminder-worker
	// binary exists for deployments that want it out of the request path.
	// The sweep lock keeps the two arrangements from double-sending.
	sched := reminder.NewScheduler(
		repo, dispatcher, locker, clock,
		cfg.SweepInterval, cfg.ReminderLead, cfg.DispatchTimeout,
		log.With().Str("component", "reminder").Logger(),
	)
	go sched.Run(rootCtx)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Log:     log.With().Str("component", "http").Logger(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			os.Exit(1)
		}
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
