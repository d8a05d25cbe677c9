package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/res"

	"github.com/gin-gonic/gin"
)

const (
	// Ограничение на размер тела запроса вебхука (Stripe рекомендует ~65kb)
	maxRequestBodySize = int64(65536)
)

// EventRelay processes verified payment events
type EventRelay interface {
	Process(ctx context.Context, e domain.PaymentEvent, destinations ...services.Destination) (*services.RelayOutcome, error)
}

// SubscriptionScheduler queues a subscription sync for a customer
type SubscriptionScheduler interface {
	Schedule(ctx context.Context, customerID string)
}

// WebhookHandler обрабатывает входящие вебхуки от Stripe.
type WebhookHandler struct {
	relay         EventRelay
	subscriptions SubscriptionScheduler
	destinations  []services.Destination
	log           *logger.Logger
	webhookSecret string // whsec_...
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(webhookSecret string, relay EventRelay, subscriptions SubscriptionScheduler, destinations []services.Destination, log *logger.Logger) (*WebhookHandler, error) {
	if webhookSecret == "" {
		log.Errorw("Stripe webhook secret is not configured")
		return nil, errors.New("stripe webhook secret is not configured")
	}
	return &WebhookHandler{
		relay:         relay,
		subscriptions: subscriptions,
		destinations:  destinations,
		log:           log,
		webhookSecret: webhookSecret,
	}, nil
}

// HandleStripeWebhook принимает вебхуки Stripe. Отклоняется только неверный
// запрос, ошибки релея логируются, а событие все равно подтверждается.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// читаем тело ОДИН раз, подпись считается по сырым байтам
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	sigHeader := c.GetHeader(stripe.SignatureHeader)
	if sigHeader == "" {
		h.log.Warnw("Missing Stripe-Signature header")
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Missing Stripe-Signature header"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	event, err := stripe.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.log.Errorw("Webhook signature verification failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Webhook signature verification failed"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	log := h.log.With("eventID", event.ID, "eventType", string(event.Type))
	log.Infow("Received verified Stripe event")

	if stripe.IsSubscriptionEvent(event) {
		customerID, err := stripe.SubscriptionCustomerID(event)
		if err != nil {
			log.Warnw("Subscription event without usable customer", "error", err)
		} else {
			h.subscriptions.Schedule(ctx, customerID)
		}
		received(c)
		return
	}

	paymentEvent, ok, err := stripe.ToPaymentEvent(event)
	if err != nil {
		log.Errorw("Failed to parse event data", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to parse event data"}, http.StatusBadRequest)
		c.Abort()
		return
	}
	if !ok {
		log.Debugw("Event type not handled, acknowledging")
		received(c)
		return
	}

	outcome, err := h.relay.Process(ctx, *paymentEvent, h.destinations...)
	if err != nil {
		log.Warnw("Payment event processed with errors", "error", err)
	}
	if outcome != nil && !outcome.Skipped {
		log.Infow("Payment event processed",
			"deliveries", len(outcome.Deliveries),
			"orderRecorded", outcome.OrderRecorded,
		)
	}
	received(c)
}

func received(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"received": true})
}
