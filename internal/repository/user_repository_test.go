package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "email", "password_hash", "full_name", "email_confirmed", "created_at", "updated_at"}

func TestUserFindByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresUserRepository(db, testLogger())
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u WHERE lower(u.email) = lower($1)")).
		WithArgs("Jane@Example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id.String(), "jane@example.com", "hash", "Jane Doe", true, time.Now(), time.Now()))

	user, err := repo.FindByEmail(context.Background(), "Jane@Example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Jane Doe", user.FullName)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u")).WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserFindByCustomerID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresUserRepository(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("JOIN stripe_customers c ON c.user_id = u.id")).
		WithArgs("cus_1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(uuid.NewString(), "jane@example.com", "", "Jane Doe", true, time.Now(), time.Now()))

	user, err := repo.FindByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestUserCreate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresUserRepository(db, testLogger())
	now := time.Now()

	user := &domain.User{
		Email:          "jane@example.com",
		PasswordHash:   "hash",
		FullName:       "Jane Doe",
		Metadata:       map[string]string{"full_name": "Jane Doe", "kajabi_user_id": "k_1"},
		EmailConfirmed: true,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "jane@example.com", "hash", "Jane Doe", sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, now, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresUserRepository(db, testLogger())
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs(id, "jane@example.com", "Jane Doe", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), &domain.User{ID: id, Email: "jane@example.com", FullName: "Jane Doe"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerLink(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresCustomerLinkRepository(db, testLogger())
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stripe_customers")).
		WithArgs(id, "kajabi_k_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.Link(context.Background(), id, "kajabi_k_1")
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stripe_customers")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.Link(context.Background(), id, "kajabi_k_1")
	require.NoError(t, err)
	assert.False(t, created)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stripe_customers WHERE user_id")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByUserID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionUpsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresSubscriptionRepository(db, testLogger())

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (customer_id) DO UPDATE")).
		WithArgs("cus_1", nil, nil, nil, nil, false, nil, nil, domain.SubscriptionStatusNotStarted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &domain.SubscriptionState{
		CustomerID: "cus_1",
		Status:     domain.SubscriptionStatusNotStarted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
