package domain

import (
	"strconv"
)

// NotificationPayload is the body POSTed to external marketing webhooks.
// It is built once per event and not modified afterwards.
type NotificationPayload struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	ExternalUserID   string `json:"external_user_id"`
	PurchaseID       string `json:"purchase_id"`
	TransactionID    string `json:"transaction_id"`
	PaymentConfirmed bool   `json:"payment_confirmed"`
	Amount           string `json:"amount,omitempty"`
	Currency         string `json:"currency,omitempty"`
}

// FormatAmount renders minor units as a decimal string without trailing
// zeros (19700 -> "197", 19750 -> "197.5"). Zero yields "".
func FormatAmount(minor int64) string {
	if minor == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(minor)/100, 'f', -1, 64)
}

// DirectNotification is a registration retry submitted from the success page
type DirectNotification struct {
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	OrderID          string `json:"order_id,omitempty"`
	PaymentConfirmed *bool  `json:"payment_confirmed,omitempty"`
}

// Confirmed defaults to true when the caller did not say otherwise
func (n DirectNotification) Confirmed() bool {
	return n.PaymentConfirmed == nil || *n.PaymentConfirmed
}
