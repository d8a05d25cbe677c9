package domain

// PaymentEventType is the processor event type the relay understands
type PaymentEventType string

const (
	EventCheckoutSessionCompleted PaymentEventType = "checkout.session.completed"
	EventPaymentIntentSucceeded   PaymentEventType = "payment_intent.succeeded"
)

// PaymentStatusPaid is the checkout session status that confirms payment
const PaymentStatusPaid = "paid"

// MetadataFullName is the metadata key holding the name typed on the checkout form
const MetadataFullName = "full_name"

// PaymentEvent is a completed checkout or a succeeded payment intent, already
// detached from the processor SDK types. It is consumed once and never stored.
type PaymentEvent struct {
	ID              string // processor event id
	Type            PaymentEventType
	ObjectID        string // checkout session id or payment intent id
	PaymentIntentID string
	CustomerID      string // processor customer reference, may be empty
	Email           string // email supplied inline on the event, may be empty
	Metadata        map[string]string
	AmountSubtotal  int64 // minor units
	AmountTotal     int64 // minor units
	Currency        string
	PaymentStatus   string
}

// IsCheckoutSession reports whether the event carries a checkout session
func (e PaymentEvent) IsCheckoutSession() bool {
	return e.Type == EventCheckoutSessionCompleted
}

// TransactionID is the payment intent when known, otherwise the object itself
func (e PaymentEvent) TransactionID() string {
	if e.PaymentIntentID != "" {
		return e.PaymentIntentID
	}
	return e.ObjectID
}

// MetadataName returns the full name attached to the event, if any
func (e PaymentEvent) MetadataName() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetadataFullName]
}
