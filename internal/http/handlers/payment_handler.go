package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/middleware"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/req"
	"github.com/Dhoini/workshop-relay/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CheckoutCreator opens hosted checkout sessions
type CheckoutCreator interface {
	CreateSession(ctx context.Context, userID uuid.UUID, email string, r domain.CheckoutRequest) (*stripe.CheckoutSession, error)
}

// OrderLister returns the recorded orders of a user
type OrderLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.OrderRecord, error)
}

// PaymentHandler обрабатывает HTTP запросы оплаты авторизованного пользователя.
type PaymentHandler struct {
	checkout CheckoutCreator
	orders   OrderLister
	log      *logger.Logger
}

// NewPaymentHandler создает новый экземпляр PaymentHandler.
func NewPaymentHandler(checkout CheckoutCreator, orders OrderLister, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		orders:   orders,
		log:      log,
	}
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type OrdersResponse struct {
	Orders []domain.OrderRecord `json:"orders"`
}

// CreateCheckout обрабатывает POST /api/v1/checkout
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	body, err := req.HandleBody[domain.CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	session, err := h.checkout.CreateSession(c.Request.Context(), userID, middleware.UserEmailFromContext(c), *body)
	if err != nil {
		h.log.Errorw("Failed to create checkout session", "userID", userID, "error", err)
		var extErr *domain.ExternalServiceError
		switch {
		case errors.Is(err, domain.ErrUnknownPrice), errors.Is(err, domain.ErrInvalidInput):
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid checkout request", Details: err.Error()}, http.StatusBadRequest)
		case errors.As(err, &extErr):
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Payment provider error"}, http.StatusBadGateway)
		default:
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to create checkout session"}, http.StatusInternalServerError)
		}
		c.Abort()
		return
	}

	res.JsonResponse(c.Writer, CheckoutResponse{URL: session.URL, SessionID: session.ID}, http.StatusOK)
}

// ListOrders обрабатывает GET /api/v1/orders
func (h *PaymentHandler) ListOrders(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to list orders", "userID", userID, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to list orders"}, http.StatusInternalServerError)
		c.Abort()
		return
	}
	if orders == nil {
		orders = []domain.OrderRecord{}
	}
	res.JsonResponse(c.Writer, OrdersResponse{Orders: orders}, http.StatusOK)
}

// currentUser reads the token subject; user ids are UUIDs
func (h *PaymentHandler) currentUser(c *gin.Context) (uuid.UUID, bool) {
	raw := middleware.UserIDFromContext(c)
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.log.Warnw("Token subject is not a valid user id", "sub", raw)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid user id in token", ErrorCode: http.StatusUnauthorized}, http.StatusUnauthorized)
		c.Abort()
		return uuid.Nil, false
	}
	return userID, true
}
