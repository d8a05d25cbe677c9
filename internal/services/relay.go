package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/kafka"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/pkg/logger"
)

// Payment event outcomes
const (
	EventRelayed       = "relayed"
	EventSkippedUnpaid = "skipped_unpaid"
	EventUnresolved    = "unresolved"
	EventDispatchError = "dispatch_failed"
)

// Destination is one external webhook endpoint
type Destination interface {
	Name() string
	Dispatch(ctx context.Context, payload any, headers map[string]string) (notify.Result, error)
}

// Delivery is the result of sending a payload to one destination
type Delivery struct {
	Destination string
	Result      notify.Result
	Err         error
}

// RelayOutcome summarises the processing of one payment event
type RelayOutcome struct {
	Skipped       bool
	Customer      *domain.CustomerRecord
	Payload       *domain.NotificationPayload
	Deliveries    []Delivery
	OrderRecorded bool
}

// Relay runs resolve, generate id, dispatch and record for payment events.
// Every entry point that notifies the marketing system goes through it.
type Relay struct {
	resolver *Resolver
	recorder *Recorder
	producer kafka.Producer
	metrics  metrics.RelayMetrics
	log      *logger.Logger

	newExternalID func(name string) string
	now           func() time.Time
}

// NewRelay создает релей. producer может быть nil.
func NewRelay(resolver *Resolver, recorder *Recorder, producer kafka.Producer, m metrics.RelayMetrics, log *logger.Logger) *Relay {
	return &Relay{
		resolver:      resolver,
		recorder:      recorder,
		producer:      producer,
		metrics:       m,
		log:           log,
		newExternalID: GenerateExternalUserID,
		now:           time.Now,
	}
}

// Process relays one payment event to every destination in order and records
// the order for checkout sessions. The returned error joins everything that
// went wrong; the outcome is always non-nil.
//
// Dispatch is detached from ctx cancellation so a started retry sequence
// completes even if the inbound request goes away.
func (r *Relay) Process(ctx context.Context, e domain.PaymentEvent, destinations ...Destination) (*RelayOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	out := &RelayOutcome{}
	log := r.log.With("eventID", e.ID, "type", string(e.Type), "objectID", e.ObjectID)

	if e.IsCheckoutSession() && e.PaymentStatus != domain.PaymentStatusPaid {
		log.Infow("Checkout session not paid, skipping", "paymentStatus", e.PaymentStatus)
		r.metrics.IncEvent(string(e.Type), EventSkippedUnpaid)
		out.Skipped = true
		return out, nil
	}

	var errs []error

	customer, err := r.resolver.Resolve(ctx, e)
	out.Customer = customer
	if err != nil {
		log.Warnw("Customer could not be resolved, notification not sent",
			"customerID", e.CustomerID,
			"error", err,
		)
		r.metrics.IncEvent(string(e.Type), EventUnresolved)
		errs = append(errs, err)
	} else {
		out.Payload = r.buildPayload(e, customer)
		out.Deliveries = r.dispatch(ctx, out.Payload, eventHeaders(e), destinations)

		outcome := EventRelayed
		for _, d := range out.Deliveries {
			if d.Err != nil {
				outcome = EventDispatchError
				errs = append(errs, d.Err)
			}
		}
		r.metrics.IncEvent(string(e.Type), outcome)
	}

	// The payment happened regardless of whether anyone could be notified.
	if e.IsCheckoutSession() {
		order := domain.OrderFromEvent(e)
		created, err := r.recorder.Record(ctx, order)
		if err != nil {
			log.Errorw("Failed to record order", "error", err)
			errs = append(errs, err)
		}
		out.OrderRecorded = created
		if created {
			r.publish(ctx, kafka.TopicPurchaseCompleted, purchaseMessage(order, customer, out.Payload))
		}
	}

	return out, errors.Join(errs...)
}

// NotifyDirect sends a notification that did not originate from a payment
// event, such as a registration retry from the success page.
func (r *Relay) NotifyDirect(ctx context.Context, n domain.DirectNotification, dest Destination) (*domain.NotificationPayload, notify.Result, error) {
	ctx = context.WithoutCancel(ctx)
	ms := strconv.FormatInt(r.now().UnixMilli(), 10)

	payload := &domain.NotificationPayload{
		Name:             n.Name,
		Email:            n.Email,
		ExternalUserID:   r.newExternalID(n.Name),
		PurchaseID:       "manual_" + ms,
		TransactionID:    "txn_" + ms,
		PaymentConfirmed: n.Confirmed(),
	}
	if n.OrderID != "" {
		payload.PurchaseID = n.OrderID
		payload.TransactionID = n.OrderID
	}

	res, err := dest.Dispatch(ctx, payload, nil)
	if err != nil {
		r.log.Errorw("Direct notification failed", "email", n.Email, "attempts", res.Attempts, "error", err)
		return payload, res, err
	}
	r.log.Infow("Direct notification sent", "email", n.Email, "externalUserID", payload.ExternalUserID)
	return payload, res, nil
}

func (r *Relay) buildPayload(e domain.PaymentEvent, c *domain.CustomerRecord) *domain.NotificationPayload {
	return &domain.NotificationPayload{
		Name:             c.Name,
		Email:            c.Email,
		ExternalUserID:   r.newExternalID(c.Name),
		PurchaseID:       e.ObjectID,
		TransactionID:    e.TransactionID(),
		PaymentConfirmed: true,
		Amount:           domain.FormatAmount(e.AmountTotal),
		Currency:         e.Currency,
	}
}

func (r *Relay) dispatch(ctx context.Context, payload *domain.NotificationPayload, headers map[string]string, destinations []Destination) []Delivery {
	deliveries := make([]Delivery, 0, len(destinations))
	for _, d := range destinations {
		res, err := d.Dispatch(ctx, payload, headers)
		if err != nil {
			err = fmt.Errorf("%s: %w", d.Name(), err)
		}
		deliveries = append(deliveries, Delivery{Destination: d.Name(), Result: res, Err: err})
	}
	return deliveries
}

func (r *Relay) publish(ctx context.Context, topic string, msg kafka.PurchaseMessage) {
	if r.producer == nil {
		return
	}
	if err := r.producer.Publish(ctx, topic, msg); err != nil {
		r.log.Warnw("Failed to publish purchase event", "topic", topic, "error", err)
	}
}

func eventHeaders(e domain.PaymentEvent) map[string]string {
	if e.IsCheckoutSession() {
		return map[string]string{"X-Session-ID": e.ObjectID}
	}
	return map[string]string{"X-Payment-Intent-ID": e.ObjectID}
}

func purchaseMessage(o *domain.OrderRecord, c *domain.CustomerRecord, p *domain.NotificationPayload) kafka.PurchaseMessage {
	msg := kafka.PurchaseMessage{
		CheckoutSessionID: o.CheckoutSessionID,
		PaymentIntentID:   o.PaymentIntentID,
		CustomerID:        o.CustomerID,
		AmountTotal:       o.AmountTotal,
		Currency:          o.Currency,
	}
	if c != nil {
		msg.Email = c.Email
	}
	if p != nil {
		msg.ExternalUserID = p.ExternalUserID
	}
	return msg
}
