package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CustomerLinkRepository связывает пользователей с клиентами Stripe
type CustomerLinkRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerLink, error)
	// Link stores the pair. An already linked user keeps its existing customer
	// and created is false.
	Link(ctx context.Context, userID uuid.UUID, customerID string) (created bool, err error)
}

type postgresCustomerLinkRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresCustomerLinkRepository создает репозиторий связей для PostgreSQL.
func NewPostgresCustomerLinkRepository(db *sqlx.DB, log *logger.Logger) CustomerLinkRepository {
	return &postgresCustomerLinkRepo{db: db, log: log}
}

func (r *postgresCustomerLinkRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerLink, error) {
	var link domain.CustomerLink
	query := `SELECT user_id, customer_id, created_at FROM stripe_customers WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &link, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get customer link", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get customer link: %w", err)
	}
	return &link, nil
}

func (r *postgresCustomerLinkRepo) Link(ctx context.Context, userID uuid.UUID, customerID string) (bool, error) {
	query := `
        INSERT INTO stripe_customers (user_id, customer_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, userID, customerID)
	if err != nil {
		r.log.Errorw("Failed to link customer", "error", err, "userID", userID, "customerID", customerID)
		return false, fmt.Errorf("repository: failed to link customer: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}
