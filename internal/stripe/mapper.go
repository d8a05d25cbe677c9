package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Dhoini/workshop-relay/internal/domain"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// SignatureHeader is the header carrying the webhook signature
const SignatureHeader = "Stripe-Signature"

const subscriptionEventPrefix = "customer.subscription."

// ConstructEvent verifies the signature of payload and parses it. Any
// verification problem is reported as domain.ErrWebhookValidationFailed.
func ConstructEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing %s header", domain.ErrWebhookValidationFailed, SignatureHeader)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}
	return event, nil
}

// IsSubscriptionEvent reports whether the event belongs to customer.subscription.*
func IsSubscriptionEvent(event stripe.Event) bool {
	return strings.HasPrefix(string(event.Type), subscriptionEventPrefix)
}

// ToPaymentEvent converts a checkout.session.completed or
// payment_intent.succeeded event. ok is false for every other type.
func ToPaymentEvent(event stripe.Event) (pe *domain.PaymentEvent, ok bool, err error) {
	if event.Data == nil {
		return nil, false, fmt.Errorf("stripe: event %s has no data", event.ID)
	}

	switch domain.PaymentEventType(event.Type) {
	case domain.EventCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, false, fmt.Errorf("stripe: parse checkout session: %w", err)
		}
		return fromCheckoutSession(event.ID, &s), true, nil

	case domain.EventPaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, false, fmt.Errorf("stripe: parse payment intent: %w", err)
		}
		return fromPaymentIntent(event.ID, &pi), true, nil
	}
	return nil, false, nil
}

// SubscriptionCustomerID extracts the customer of a customer.subscription.* event
func SubscriptionCustomerID(event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", fmt.Errorf("stripe: event %s has no data", event.ID)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("stripe: parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return "", fmt.Errorf("stripe: subscription %s has no customer", sub.ID)
	}
	return sub.Customer.ID, nil
}

func fromCheckoutSession(eventID string, s *stripe.CheckoutSession) *domain.PaymentEvent {
	pe := &domain.PaymentEvent{
		ID:             eventID,
		Type:           domain.EventCheckoutSessionCompleted,
		ObjectID:       s.ID,
		Email:          s.CustomerEmail,
		Metadata:       s.Metadata,
		AmountSubtotal: s.AmountSubtotal,
		AmountTotal:    s.AmountTotal,
		Currency:       string(s.Currency),
		PaymentStatus:  string(s.PaymentStatus),
	}
	if pe.Email == "" && s.CustomerDetails != nil {
		pe.Email = s.CustomerDetails.Email
	}
	if s.PaymentIntent != nil {
		pe.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Customer != nil {
		pe.CustomerID = s.Customer.ID
	}
	return pe
}

func fromPaymentIntent(eventID string, pi *stripe.PaymentIntent) *domain.PaymentEvent {
	pe := &domain.PaymentEvent{
		ID:              eventID,
		Type:            domain.EventPaymentIntentSucceeded,
		ObjectID:        pi.ID,
		PaymentIntentID: pi.ID,
		Email:           pi.ReceiptEmail,
		Metadata:        pi.Metadata,
		AmountSubtotal:  pi.Amount,
		AmountTotal:     pi.Amount,
		Currency:        string(pi.Currency),
		PaymentStatus:   string(pi.Status),
	}
	if pi.Customer != nil {
		pe.CustomerID = pi.Customer.ID
	}
	return pe
}
