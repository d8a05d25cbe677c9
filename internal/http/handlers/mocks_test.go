package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/middleware"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logger.Logger {
	return logger.New(logger.ERROR)
}

// newTestRouter returns a gin engine in test mode. A non-empty userID and
// email are put on the context the way the auth middleware does it.
func newTestRouter(userID, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(string(middleware.ContextUserIDKey), userID)
			c.Set(string(middleware.ContextUserEmailKey), email)
			c.Next()
		})
	}
	return r
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) Process(ctx context.Context, e domain.PaymentEvent, destinations ...services.Destination) (*services.RelayOutcome, error) {
	args := m.Called(ctx, e, destinations)
	if o := args.Get(0); o != nil {
		return o.(*services.RelayOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRelay) NotifyDirect(ctx context.Context, n domain.DirectNotification, dest services.Destination) (*domain.NotificationPayload, notify.Result, error) {
	args := m.Called(ctx, n, dest)
	var payload *domain.NotificationPayload
	if p := args.Get(0); p != nil {
		payload = p.(*domain.NotificationPayload)
	}
	return payload, args.Get(1).(notify.Result), args.Error(2)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(ctx context.Context, customerID string) {
	m.Called(ctx, customerID)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, r domain.ProvisioningRequest, rawBody []byte) (*services.ProvisionResult, error) {
	args := m.Called(ctx, r, rawBody)
	if res := args.Get(0); res != nil {
		return res.(*services.ProvisionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockForwarder struct {
	mock.Mock
}

func (m *mockForwarder) Forward(ctx context.Context, body []byte) *services.ProxyResult {
	return m.Called(ctx, body).Get(0).(*services.ProxyResult)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) CreateSession(ctx context.Context, userID uuid.UUID, email string, r domain.CheckoutRequest) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, userID, email, r)
	if s := args.Get(0); s != nil {
		return s.(*stripe.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.OrderRecord, error) {
	args := m.Called(ctx, userID)
	if o := args.Get(0); o != nil {
		return o.([]domain.OrderRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubDestination struct{ name string }

func (d stubDestination) Name() string { return d.name }

func (d stubDestination) Dispatch(context.Context, any, map[string]string) (notify.Result, error) {
	return notify.Result{Attempts: 1, StatusCode: http.StatusOK, Success: true}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }
