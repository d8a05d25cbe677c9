package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ProvisioningRequest is the inbound learning-platform webhook body
type ProvisioningRequest struct {
	Name           string  `json:"name" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	ExternalUserID string  `json:"external_user_id" validate:"required"`
	PurchaseID     string  `json:"purchase_id,omitempty"`
	TransactionID  string  `json:"transaction_id,omitempty"`
	Amount         Decimal `json:"amount,omitempty"`
	Currency       string  `json:"currency,omitempty"`
}

// Decimal accepts a major-unit amount sent either as a JSON number or a string.
type Decimal string

// UnmarshalJSON implements json.Unmarshaler
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Decimal(n.String())
	return nil
}

// Minor converts the amount to minor units. ok is false when the value is
// empty, not a finite number, not positive or too large for int64.
func (d Decimal) Minor() (int64, bool) {
	if d == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(d), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	minor := math.Round(f * 100)
	// float64(MaxInt64) округляется вверх до 2^63
	if minor >= math.MaxInt64 {
		return 0, false
	}
	return int64(minor), true
}
