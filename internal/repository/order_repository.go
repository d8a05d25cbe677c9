package repository

import (
	"context"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// OrderRepository хранит записи о завершенных покупках
type OrderRepository interface {
	ExistsBySessionID(ctx context.Context, checkoutSessionID string) (bool, error)
	// Create inserts the order. It returns ErrDuplicate when an order with the
	// same checkout_session_id already exists.
	Create(ctx context.Context, order *domain.OrderRecord) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.OrderRecord, error)
}

type postgresOrderRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresOrderRepository создает репозиторий заказов для PostgreSQL.
func NewPostgresOrderRepository(db *sqlx.DB, log *logger.Logger) OrderRepository {
	return &postgresOrderRepo{db: db, log: log}
}

func (r *postgresOrderRepo) ExistsBySessionID(ctx context.Context, checkoutSessionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM stripe_orders WHERE checkout_session_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, checkoutSessionID); err != nil {
		r.log.Errorw("Failed to check order existence", "error", err, "sessionID", checkoutSessionID)
		return false, fmt.Errorf("repository: failed to check order: %w", err)
	}
	return exists, nil
}

func (r *postgresOrderRepo) Create(ctx context.Context, order *domain.OrderRecord) error {
	query := `
        INSERT INTO stripe_orders (
            checkout_session_id, payment_intent_id, customer_id, amount_subtotal,
            amount_total, currency, payment_status, status
        ) VALUES (
            :checkout_session_id, :payment_intent_id, :customer_id, :amount_subtotal,
            :amount_total, :currency, :payment_status, :status
        )
        ON CONFLICT (checkout_session_id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, order)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create order in DB", "error", err, "sessionID", order.CheckoutSessionID)
		return fmt.Errorf("repository: failed to create order: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrDuplicate
	}

	r.log.Debugw("Order created", "sessionID", order.CheckoutSessionID, "customerID", order.CustomerID)
	return nil
}

func (r *postgresOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.OrderRecord, error) {
	orders := []domain.OrderRecord{}
	query := `
        SELECT o.id, o.checkout_session_id, o.payment_intent_id, o.customer_id,
               o.amount_subtotal, o.amount_total, o.currency, o.payment_status,
               o.status, o.created_at
        FROM stripe_orders o
        JOIN stripe_customers c ON c.customer_id = o.customer_id
        WHERE c.user_id = $1
        ORDER BY o.created_at DESC`

	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		r.log.Errorw("Failed to list orders", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to list orders: %w", err)
	}
	return orders, nil
}
