package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/v1pung/url-alias/internal/models"
)

// CacheRepository кэш ссылок для публичного резолва. Путь чтения заполняет
// кэш только через SetNX, а деактивация пишет неактивный снимок через Set:
// отставший резолв, прочитавший БД до деактивации, не может затереть этот
// снимок устаревшей активной копией.
type CacheRepository interface {
	Get(ctx context.Context, code string) (*models.Link, error)
	Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error
	SetNX(ctx context.Context, code string, link *models.Link, ttl time.Duration) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	data, err := r.redis.Client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	return &link, nil
}

// Set безусловно записывает снимок ссылки
func (r *cacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(code), data, ttl).Err()
}

// SetNX записывает снимок, только если ключа ещё нет
func (r *cacheRepository) SetNX(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.SetNX(ctx, r.key(code), data, ttl).Err()
}

func (r *cacheRepository) key(code string) string {
	return "link:" + code
}
