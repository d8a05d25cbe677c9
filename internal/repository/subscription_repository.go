package repository

import (
	"context"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// SubscriptionRepository хранит состояние подписки клиента
type SubscriptionRepository interface {
	Upsert(ctx context.Context, state *domain.SubscriptionState) error
}

type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{db: db, log: log}
}

// Upsert keeps one row per customer_id
func (r *postgresSubscriptionRepo) Upsert(ctx context.Context, state *domain.SubscriptionState) error {
	query := `
        INSERT INTO stripe_subscriptions (
            customer_id, subscription_id, price_id, current_period_start,
            current_period_end, cancel_at_period_end, payment_method_brand,
            payment_method_last4, status, updated_at
        ) VALUES (
            :customer_id, :subscription_id, :price_id, :current_period_start,
            :current_period_end, :cancel_at_period_end, :payment_method_brand,
            :payment_method_last4, :status, now()
        )
        ON CONFLICT (customer_id) DO UPDATE SET
            subscription_id = EXCLUDED.subscription_id,
            price_id = EXCLUDED.price_id,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            payment_method_brand = EXCLUDED.payment_method_brand,
            payment_method_last4 = EXCLUDED.payment_method_last4,
            status = EXCLUDED.status,
            updated_at = now()`

	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		r.log.Errorw("Failed to upsert subscription", "error", err, "customerID", state.CustomerID)
		return fmt.Errorf("repository: failed to upsert subscription: %w", err)
	}

	r.log.Debugw("Subscription state stored", "customerID", state.CustomerID, "status", state.Status)
	return nil
}
