// Package db opens the connections the service depends on: the PostgreSQL
// pool backing the document store and the Redis client backing the topic
// registry.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds pool initialisation, including the first ping.
const connectTimeout = 30 * time.Second

// New sets up a pgx connection pool and checks it with a ping.
func New(addr string, maxConns int32, maxIdleTime string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("parse DB_ADDR: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	if maxIdleTime != "" {
		idle, err := time.ParseDuration(maxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("parse DB_MAX_IDLE_TIME: %w", err)
		}
		config.MaxConnIdleTime = idle
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedis creates a Redis client and verifies the connection with a PING.
func NewRedis(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
