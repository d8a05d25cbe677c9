package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/middleware"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/req"
	"github.com/Dhoini/workshop-relay/pkg/res"

	"github.com/gin-gonic/gin"
)

// DirectNotifier sends notifications that do not come from a payment event
type DirectNotifier interface {
	NotifyDirect(ctx context.Context, n domain.DirectNotification, dest services.Destination) (*domain.NotificationPayload, notify.Result, error)
}

// WebhookForwarder relays browser submissions to the marketing webhook
type WebhookForwarder interface {
	Forward(ctx context.Context, body []byte) *services.ProxyResult
}

type NotificationResponse struct {
	Success          bool   `json:"success"`
	ExternalUserID   string `json:"external_user_id,omitempty"`
	PaymentConfirmed bool   `json:"payment_confirmed"`
	Message          string `json:"message,omitempty"`
}

// NotificationHandler serves the success page: registration retries and the
// webhook proxy.
type NotificationHandler struct {
	notifier    DirectNotifier
	destination services.Destination
	proxy       WebhookForwarder
	log         *logger.Logger
}

func NewNotificationHandler(notifier DirectNotifier, destination services.Destination, proxy WebhookForwarder, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier:    notifier,
		destination: destination,
		proxy:       proxy,
		log:         log,
	}
}

// Notify обрабатывает POST /api/v1/notifications
func (h *NotificationHandler) Notify(c *gin.Context) {
	body, err := req.HandleBody[domain.DirectNotification](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	log := h.log.With("email", body.Email, "orderID", body.OrderID)
	if userID := middleware.UserIDFromContext(c); userID != "" {
		log = log.With("userID", userID)
	}

	payload, result, err := h.notifier.NotifyDirect(c.Request.Context(), *body, h.destination)
	if err != nil {
		log.Errorw("Direct notification failed", "attempts", result.Attempts, "status", result.StatusCode, "error", err)
		res.JsonResponse(c.Writer, NotificationResponse{
			Success:          false,
			PaymentConfirmed: body.Confirmed(),
			Message:          fmt.Sprintf("Failed to notify after %d attempts", result.Attempts),
		}, http.StatusBadGateway)
		return
	}

	log.Infow("Direct notification sent", "externalUserID", payload.ExternalUserID, "attempts", result.Attempts)
	res.JsonResponse(c.Writer, NotificationResponse{
		Success:          true,
		ExternalUserID:   payload.ExternalUserID,
		PaymentConfirmed: payload.PaymentConfirmed,
	}, http.StatusOK)
}

// Proxy обрабатывает POST /api/v1/webhook-proxy
func (h *NotificationHandler) Proxy(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to read proxy request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	result := h.proxy.Forward(c.Request.Context(), body)
	res.JsonResponse(c.Writer, result, http.StatusOK)
}
