package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository управляет локальными учетными записями
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByCustomerID returns the user linked to a processor customer
	FindByCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	// Upsert creates the user or refreshes email and full name
	Upsert(ctx context.Context, user *domain.User) error
}

type postgresUserRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresUserRepository создает репозиторий пользователей для PostgreSQL.
func NewPostgresUserRepository(db *sqlx.DB, log *logger.Logger) UserRepository {
	return &postgresUserRepo{db: db, log: log}
}

const userColumns = `u.id, u.email, COALESCE(u.password_hash, '') AS password_hash,
       COALESCE(u.full_name, '') AS full_name, u.email_confirmed, u.created_at, u.updated_at`

func (r *postgresUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users u WHERE lower(u.email) = lower($1)`

	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get user by email", "error", err)
		return nil, fmt.Errorf("repository: failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepo) FindByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + `
        FROM users u
        JOIN stripe_customers c ON c.user_id = u.id
        WHERE c.customer_id = $1`

	if err := r.db.GetContext(ctx, &user, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get user by customer", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("repository: failed to get user by customer: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO users (id, email, password_hash, full_name, metadata, email_confirmed)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, metadata, user.EmailConfirmed,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create user", "error", err, "userID", user.ID)
		return fmt.Errorf("repository: failed to create user: %w", err)
	}

	r.log.Debugw("User created", "userID", user.ID)
	return nil
}

func (r *postgresUserRepo) Upsert(ctx context.Context, user *domain.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO users (id, email, full_name, metadata, email_confirmed)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), users.full_name),
            updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, metadata, user.EmailConfirmed,
	); err != nil {
		r.log.Errorw("Failed to upsert user", "error", err, "userID", user.ID)
		return fmt.Errorf("repository: failed to upsert user: %w", err)
	}
	return nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to marshal metadata: %w", err)
	}
	return b, nil
}
