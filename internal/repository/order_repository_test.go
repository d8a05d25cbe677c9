package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "pgx"), mock
}

func testLogger() *logger.Logger {
	return logger.New(logger.ERROR)
}

func sampleOrder() *domain.OrderRecord {
	return &domain.OrderRecord{
		CheckoutSessionID: "cs_1",
		PaymentIntentID:   "pi_1",
		CustomerID:        "cus_1",
		AmountSubtotal:    19700,
		AmountTotal:       19700,
		Currency:          "usd",
		PaymentStatus:     "paid",
		Status:            domain.OrderStatusCompleted,
	}
}

var insertOrder = regexp.QuoteMeta("INSERT INTO stripe_orders")

func TestOrderCreate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresOrderRepository(db, testLogger())

	mock.ExpectExec(insertOrder).
		WithArgs("cs_1", "pi_1", "cus_1", int64(19700), int64(19700), "usd", "paid", "completed").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), sampleOrder()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreateConflictIsDuplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresOrderRepository(db, testLogger())

	mock.ExpectExec(insertOrder).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Create(context.Background(), sampleOrder()), ErrDuplicate)

	mock.ExpectExec(insertOrder).WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Create(context.Background(), sampleOrder()), domain.ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreateOtherError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresOrderRepository(db, testLogger())

	mock.ExpectExec(insertOrder).WillReturnError(errors.New("connection reset"))
	err := repo.Create(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestOrderExistsBySessionID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresOrderRepository(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("cs_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsBySessionID(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderListByUserID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresOrderRepository(db, testLogger())
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM stripe_orders o")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "checkout_session_id", "payment_intent_id", "customer_id", "amount_subtotal",
			"amount_total", "currency", "payment_status", "status", "created_at",
		}).
			AddRow(2, "cs_2", "pi_2", "cus_1", 19700, 19700, "usd", "paid", "completed", now).
			AddRow(1, "cs_1", "pi_1", "cus_1", 19700, 19700, "usd", "paid", "completed", now.Add(-time.Hour)))

	orders, err := repo.ListByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "cs_2", orders[0].CheckoutSessionID)
}
