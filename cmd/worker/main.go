package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-api/internal/config"
	"github.com/noah-isme/checkout-api/internal/lock"
	"github.com/noah-isme/checkout-api/internal/obs"
	"github.com/noah-isme/checkout-api/internal/store"
)

const sweepLockKey = "lock:order-draft-sweep"

// The worker prunes abandoned draft orders: drafts that never received a
// line or a payment session within the configured TTL. A Redis lock keeps
// concurrent worker replicas from sweeping at the same time.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("checkout", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	orders := store.NewOrderStore(pool)
	locker := lock.Locker{R: redisClient}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Dur("draft_ttl", cfg.OrderDraftTTL).Msg("draft sweeper starting")

	sweep(ctx, locker, orders, cfg.OrderDraftTTL, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("draft sweeper stopping")
			return
		case <-ticker.C:
			sweep(ctx, locker, orders, cfg.OrderDraftTTL, logger)
		}
	}
}

func sweep(ctx context.Context, locker lock.Locker, orders *store.OrderStore, ttl time.Duration, logger zerolog.Logger) {
	err := locker.WithLock(ctx, sweepLockKey, time.Minute, func(ctx context.Context) error {
		cutoff := time.Now().Add(-ttl)
		pruned, err := orders.DeleteAbandonedDrafts(ctx, cutoff)
		if err != nil {
			return err
		}
		if pruned > 0 {
			if obs.DraftsPrunedTotal != nil {
				obs.DraftsPrunedTotal.Add(float64(pruned))
			}
			logger.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("abandoned drafts removed")
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("sweep abandoned drafts")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "checkout-worker"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}
