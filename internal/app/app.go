package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/config"
	"github.com/hackgods/priority-appointment-scheduling/internal/db"
	redisclient "github.com/hackgods/priority-appointment-scheduling/internal/redis"
)

// App bundles the scheduler with whatever backing services are configured.
// PgPool and Redis are nil when their settings are empty.
type App struct {
	Config  config.Config
	Log     zerolog.Logger
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
}

// Open connects to Postgres and Redis when configured and builds the
// scheduler on top of them. With Postgres, stored calendars are loaded
// back into memory.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	var repo appointment.Repository
	if cfg.PostgresDSN != "" {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, true)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		a.PgPool = pool
		repo = appointment.NewPgRepository(pool)
		log.Info().Msg("connected to Postgres")
	} else {
		repo = appointment.NewMemoryRepository()
		log.Info().Msg("POSTGRES_DSN not set, keeping snapshots in memory")
	}

	var locker appointment.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		a.Redis = rdb
		locker = redisclient.NewCalendarLocker(rdb, cfg.LockTTL, cfg.LockWait)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	} else {
		locker = appointment.NewLocalLocker()
	}

	a.Service = appointment.NewService(repo, locker, log)

	if a.PgPool != nil {
		n, err := a.Service.LoadAll(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load calendars: %w", err)
		}
		log.Info().Int("calendars", n).Msg("calendars restored")
	}

	return a, nil
}

// Close saves every calendar when Postgres is configured, then releases
// the connections.
func (a *App) Close() {
	if a.PgPool != nil && a.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		if err := a.Service.SaveAll(ctx); err != nil {
			a.Log.Error().Err(err).Msg("failed to save calendars on shutdown")
		}
		cancel()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("error closing redis")
		}
	}
	if a.PgPool != nil {
		a.PgPool.Close()
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.ShutdownTimeout > 0 {
		return a.Config.ShutdownTimeout
	}
	return 10 * time.Second
}
