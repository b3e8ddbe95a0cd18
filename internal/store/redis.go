package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the Redis server shared by the session store,
// insight cache and event queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis holds the shared client.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds a client. The queue's BRPOP waits longer than
// ReadTimeout; go-redis extends the deadline for blocking commands.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     20,
	})
	return &Redis{Client: client, addr: cfg.Addr}
}

// Ping reports why Redis is unreachable, or nil.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", r.addr, err)
	}
	return nil
}

// Healthy is Ping as a health check.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
