package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
)

// Order recording results
const (
	OrderRecorded  = "recorded"
	OrderDuplicate = "duplicate"
	OrderFailed    = "failed"
)

// Recorder persists completed purchases once per checkout session
type Recorder struct {
	orders  repository.OrderRepository
	metrics metrics.RelayMetrics
	log     *logger.Logger
}

func NewRecorder(orders repository.OrderRepository, m metrics.RelayMetrics, log *logger.Logger) *Recorder {
	return &Recorder{orders: orders, metrics: m, log: log}
}

// Record inserts the order. created is false when an order with the same
// checkout_session_id already exists; that case is not an error.
func (r *Recorder) Record(ctx context.Context, order *domain.OrderRecord) (created bool, err error) {
	exists, err := r.orders.ExistsBySessionID(ctx, order.CheckoutSessionID)
	if err != nil {
		r.metrics.IncOrder(OrderFailed)
		return false, err
	}
	if exists {
		r.log.Infow("Order already recorded", "sessionID", order.CheckoutSessionID)
		r.metrics.IncOrder(OrderDuplicate)
		return false, nil
	}

	if err := r.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			r.log.Infow("Order recorded concurrently", "sessionID", order.CheckoutSessionID)
			r.metrics.IncOrder(OrderDuplicate)
			return false, nil
		}
		r.metrics.IncOrder(OrderFailed)
		return false, fmt.Errorf("record order %s: %w", order.CheckoutSessionID, err)
	}

	r.metrics.IncOrder(OrderRecorded)
	r.log.Infow("Order recorded", "sessionID", order.CheckoutSessionID, "amount", order.AmountTotal, "currency", order.Currency)
	return true, nil
}

// ListForUser returns the user's orders, newest first
func (r *Recorder) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.OrderRecord, error) {
	return r.orders.ListByUserID(ctx, userID)
}
