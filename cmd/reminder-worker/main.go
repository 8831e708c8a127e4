package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicbook/scheduling/internal/booking"
	"github.com/clinicbook/scheduling/internal/config"
	"github.com/clinicbook/scheduling/internal/db"
	"github.com/clinicbook/scheduling/internal/logging"
	"github.com/clinicbook/scheduling/internal/notify"
	redisclient "github.com/clinicbook/scheduling/internal/redis"
	"github.com/clinicbook/scheduling/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("reminder-worker", "dev")
		bootLog.Fatal().Err(err).Msg("config load")
	}

	log := logging.New("reminder-worker", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("starting up")

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
	dispatcher := notify.NewLogDispatcher(log.With().Str("component", "dispatcher").Logger())

	sched := reminder.NewScheduler(
		repo, dispatcher, locker, booking.SystemClock(),
		cfg.SweepInterval, cfg.ReminderLead, cfg.DispatchTimeout,
		log.With().Str("component", "reminder").Logger(),
	)

	sched.Run(rootCtx)
}
