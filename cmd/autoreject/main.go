package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/appointment"
	"github.com/tcioe/appointment-service/internal/config"
	"github.com/tcioe/appointment-service/internal/db"
	"github.com/tcioe/appointment-service/internal/logging"
	"github.com/tcioe/appointment-service/internal/notify"
	redisclient "github.com/tcioe/appointment-service/internal/redis"
)

// autoreject sweeps pending appointments whose date passed beyond the grace
// window. It is meant to be invoked periodically from cron.
func main() {
	days := flag.Int("days", -1, "grace window in days (default from config)")
	dryRun := flag.Bool("dry-run", false, "report candidates without mutating")
	purgeOTPs := flag.Bool("purge-otps", false, "also purge OTP records older than one hour")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Init("autoreject", "dev")
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("autoreject", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgPool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	rdb, err := redisclient.Connect(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer rdb.Close()

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	dispatcher := notify.NewDispatcher(notify.NewProvider(cfg))
	svc := appointment.NewService(repo, locker, dispatcher, cfg)

	start := time.Now()
	processed, rejected, err := svc.AutoRejectOverdue(ctx, *days, *dryRun)
	if err != nil {
		log.Error().Err(err).Msg("auto-reject run failed")
		os.Exit(1)
	}

	if *purgeOTPs {
		if _, err := svc.PurgeStaleOTPs(ctx); err != nil {
			log.Error().Err(err).Msg("otp purge failed")
			os.Exit(1)
		}
	}

	log.Info().Dur("duration", time.Since(start)).Msg("auto-reject run complete")
	fmt.Printf("processed=%d rejected=%d\n", processed, rejected)
}
