package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomerRecord is the resolved identity of a payer
type CustomerRecord struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	CustomerID string `json:"customer_id,omitempty"` // processor customer id
}

// ProcessorCustomer is the subset of the payment processor's customer object
// the relay reads.
type ProcessorCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Deleted  bool              `json:"deleted"`
}

// FullName prefers the checkout form name stored in metadata over the
// processor's own name field.
func (c ProcessorCustomer) FullName() string {
	if n := c.Metadata[MetadataFullName]; n != "" {
		return n
	}
	return c.Name
}

// User is an account in local user storage
type User struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	Email          string            `db:"email" json:"email"`
	PasswordHash   string            `db:"password_hash" json:"-"`
	FullName       string            `db:"full_name" json:"full_name"`
	Metadata       map[string]string `db:"-" json:"metadata,omitempty"`
	EmailConfirmed bool              `db:"email_confirmed" json:"email_confirmed"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// CustomerLink ties a local user to a processor customer id
type CustomerLink struct {
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
