// Package bootstrap builds the backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/config"
	"classroll/internal/insights"
	"classroll/internal/metrics"
	"classroll/internal/queue"
	"classroll/internal/store"
)

// Backends holds the opened connections. Either may be nil.
type Backends struct {
	DB    *store.DB
	Redis *store.Redis
}

// NeedsRedis reports whether any configured component uses Redis.
func NeedsRedis(cfg config.App) bool {
	return cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis" || cfg.GeminiAPIKey != ""
}

// Open connects to the backends cfg asks for.
func Open(ctx context.Context, cfg config.App, log zerolog.Logger) (*Backends, error) {
	b := &Backends{}
	if NeedsRedis(cfg) {
		b.Redis = store.NewRedis(store.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := b.Redis.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Redis not reachable yet")
		}
	}
	if cfg.SessionBackend == "postgres" {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return b, fmt.Errorf("connect postgres: %w", err)
		}
		b.DB = db
	}
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b == nil {
		return
	}
	_ = b.DB.Close()
	_ = b.Redis.Close()
}

// Persistence returns the session store backend named by cfg.SessionBackend.
func (b *Backends) Persistence(ctx context.Context, cfg config.App) (attendance.Persistence, error) {
	switch cfg.SessionBackend {
	case "memory":
		return store.NewMemorySnapshot(), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("redis backend not connected")
		}
		return store.NewRedisSnapshot(b.Redis.Client, cfg.SessionKey), nil
	case "postgres":
		if b.DB == nil {
			return nil, fmt.Errorf("postgres backend not connected")
		}
		return store.NewPostgresSnapshot(ctx, b.DB.Client)
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}

// Queue returns the event queue named by cfg.QueueBackend.
func (b *Backends) Queue(cfg config.App) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "memory":
		return queue.NewInMemory(64), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("redis backend not connected")
		}
		return queue.NewRedisQueue(b.Redis.Client, cfg.QueueKey), nil
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
}

// Insights builds the insight service. Without a usable API key it only
// returns the not-configured message.
func (b *Backends) Insights(ctx context.Context, cfg config.App, m *metrics.Metrics, log zerolog.Logger) *insights.Service {
	opts := []insights.Option{insights.WithOutcomeHook(m.Insight)}
	if b.Redis != nil {
		opts = append(opts, insights.WithCache(store.NewRedisCache(b.Redis.Client, "classroll:insight:"), cfg.InsightCacheTTL))
	}
	var gen insights.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := insights.NewGeminiClient(ctx, cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey)
		if err != nil {
			log.Error().Err(err).Msg("Gemini client unavailable, insights disabled")
		} else {
			gen = client
		}
	}
	return insights.NewService(gen, log, opts...)
}
