package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	customerKeyPrefix = "stripe_customer:"

	defaultCacheTTL = 15 * time.Minute
)

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}

// RedisCacheRepository кеширует клиентов Stripe в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает кеш поверх готового клиента
func NewRedisCacheRepository(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// CacheCustomer кеширует клиента
func (r *RedisCacheRepository) CacheCustomer(ctx context.Context, c *domain.ProcessorCustomer) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	if err := r.client.Set(ctx, customerKeyPrefix+c.ID, data, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to cache customer in Redis", "error", err, "customerID", c.ID)
		return fmt.Errorf("failed to cache customer: %w", err)
	}
	return nil
}

// GetCachedCustomer возвращает клиента из кеша; nil, nil если ключа нет
func (r *RedisCacheRepository) GetCachedCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	data, err := r.client.Get(ctx, customerKeyPrefix+customerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting customer from Redis", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to get customer from cache: %w", err)
	}

	var c domain.ProcessorCustomer
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached customer: %w", err)
	}
	return &c, nil
}

// InvalidateCustomer удаляет клиента из кеша
func (r *RedisCacheRepository) InvalidateCustomer(ctx context.Context, customerID string) error {
	if err := r.client.Del(ctx, customerKeyPrefix+customerID).Err(); err != nil {
		r.log.Errorw("Failed to delete customer from cache", "error", err, "customerID", customerID)
		return fmt.Errorf("failed to delete customer from cache: %w", err)
	}
	return nil
}
