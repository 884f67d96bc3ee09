package repository

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/v1pung/url-alias/internal/config"
)

type RedisDB struct {
	Client *redis.Client
}

// NewRedisClient подключается к Redis с пулом из конфига. Нулевые значения
// пула (тестовые окружения) заменяются дефолтами.
func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 100
	}
	minIdle := cfg.MinIdleConns
	if minIdle == 0 {
		minIdle = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		DB:           0,
		PoolSize:     poolSize,
		MinIdleConns: minIdle,
	})

	// Кэш обязателен: без Redis сервис не стартует
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
