package repository

import (
	"context"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
)

// CustomerSource loads processor customers by id
type CustomerSource interface {
	GetCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error)
}

// CachedCustomerSource reads through a Redis cache before asking the source
type CachedCustomerSource struct {
	source CustomerSource
	cache  *RedisCacheRepository
	log    *logger.Logger
}

// NewCachedCustomerSource создает источник клиентов с кешированием
func NewCachedCustomerSource(source CustomerSource, cache *RedisCacheRepository, log *logger.Logger) *CachedCustomerSource {
	return &CachedCustomerSource{source: source, cache: cache, log: log}
}

// GetCustomer получает клиента (сначала из кеша, потом из Stripe)
func (s *CachedCustomerSource) GetCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	cached, err := s.cache.GetCachedCustomer(ctx, customerID)
	if err != nil {
		s.log.Warnw("Error getting customer from cache", "error", err, "customerID", customerID)
	}
	if cached != nil {
		s.log.Debugw("Customer found in cache", "customerID", customerID)
		return cached, nil
	}

	c, err := s.source.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.CacheCustomer(ctx, c); err != nil {
		s.log.Warnw("Failed to cache customer after fetching", "error", err, "customerID", customerID)
	}
	return c, nil
}
