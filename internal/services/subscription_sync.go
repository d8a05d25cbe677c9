package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const subscriptionSyncTimeout = 30 * time.Second

// SubscriptionSource returns the customer's latest subscription, nil if none
type SubscriptionSource interface {
	LatestSubscription(ctx context.Context, customerID string) (*domain.SubscriptionState, error)
}

// SubscriptionSync mirrors the processor's subscription state locally. Work
// scheduled with Schedule outlives the request that triggered it.
type SubscriptionSync struct {
	source SubscriptionSource
	subs   repository.SubscriptionRepository
	group  errgroup.Group
	log    *logger.Logger
}

func NewSubscriptionSync(source SubscriptionSource, subs repository.SubscriptionRepository, log *logger.Logger) *SubscriptionSync {
	return &SubscriptionSync{source: source, subs: subs, log: log}
}

// Sync stores the latest subscription of customerID, or not_started when the
// customer has none.
func (s *SubscriptionSync) Sync(ctx context.Context, customerID string) error {
	state, err := s.source.LatestSubscription(ctx, customerID)
	if err != nil {
		return fmt.Errorf("fetch subscription of %s: %w", customerID, err)
	}
	if state == nil {
		state = &domain.SubscriptionState{
			CustomerID: customerID,
			Status:     domain.SubscriptionStatusNotStarted,
		}
	}
	return s.subs.Upsert(ctx, state)
}

// Schedule runs Sync in the background, detached from ctx cancellation
func (s *SubscriptionSync) Schedule(ctx context.Context, customerID string) {
	ctx = context.WithoutCancel(ctx)
	s.group.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, subscriptionSyncTimeout)
		defer cancel()

		if err := s.Sync(ctx, customerID); err != nil {
			s.log.Errorw("Subscription sync failed", "customerID", customerID, "error", err)
			return nil
		}
		s.log.Infow("Subscription synced", "customerID", customerID)
		return nil
	})
}

// Wait blocks until every scheduled sync finished
func (s *SubscriptionSync) Wait() error {
	return s.group.Wait()
}
