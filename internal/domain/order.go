package domain

import "time"

const (
	OrderStatusCompleted = "completed"
)

// OrderRecord is the local record of a completed purchase. It is inserted
// once per checkout_session_id and never updated.
type OrderRecord struct {
	ID                int64     `db:"id" json:"id"`
	CheckoutSessionID string    `db:"checkout_session_id" json:"checkout_session_id"`
	PaymentIntentID   string    `db:"payment_intent_id" json:"payment_intent_id"`
	CustomerID        string    `db:"customer_id" json:"customer_id"`
	AmountSubtotal    int64     `db:"amount_subtotal" json:"amount_subtotal"`
	AmountTotal       int64     `db:"amount_total" json:"amount_total"`
	Currency          string    `db:"currency" json:"currency"`
	PaymentStatus     string    `db:"payment_status" json:"payment_status"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// OrderFromEvent builds the record for a paid checkout session
func OrderFromEvent(e PaymentEvent) *OrderRecord {
	currency := e.Currency
	if currency == "" {
		currency = "usd"
	}
	status := e.PaymentStatus
	if status == "" {
		status = "unknown"
	}
	return &OrderRecord{
		CheckoutSessionID: e.ObjectID,
		PaymentIntentID:   e.PaymentIntentID,
		CustomerID:        e.CustomerID,
		AmountSubtotal:    e.AmountSubtotal,
		AmountTotal:       e.AmountTotal,
		Currency:          currency,
		PaymentStatus:     status,
		Status:            OrderStatusCompleted,
	}
}
