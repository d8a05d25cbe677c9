package domain

import "time"

const SubscriptionStatusNotStarted = "not_started"

// SubscriptionState mirrors the customer's latest processor subscription
type SubscriptionState struct {
	CustomerID         string    `db:"customer_id" json:"customer_id"`
	SubscriptionID     *string   `db:"subscription_id" json:"subscription_id,omitempty"`
	PriceID            *string   `db:"price_id" json:"price_id,omitempty"`
	CurrentPeriodStart *int64    `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *int64    `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool      `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	PaymentMethodBrand *string   `db:"payment_method_brand" json:"payment_method_brand,omitempty"`
	PaymentMethodLast4 *string   `db:"payment_method_last4" json:"payment_method_last4,omitempty"`
	Status             string    `db:"status" json:"status"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
