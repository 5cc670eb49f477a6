package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/campussafe/internal/config"
)

const defaultRedisPoolSize = 10

var (
	newRedisClient   = redis.NewClient
	redisPing        = func(ctx context.Context, client *redis.Client) error { return client.Ping(ctx).Err() }
	closeRedisClient = func(client *redis.Client) error { return client.Close() }
)

// RedisDB backs sessions, rate-limit windows and the location pub/sub
// channels.
type RedisDB struct {
	Client *redis.Client
}

func NewRedisDB(cfg config.RedisConfig) (*RedisDB, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}
	client := newRedisClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: min(3, poolSize),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisPing(ctx, client); err != nil {
		_ = closeRedisClient(client)
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	if r.Client != nil {
		return closeRedisClient(r.Client)
	}
	return nil
}

func (r *RedisDB) Health(ctx context.Context) error {
	return redisPing(ctx, r.Client)
}
