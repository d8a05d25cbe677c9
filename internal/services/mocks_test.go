package services

import (
	"context"
	"sync"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/kafka"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logger.Logger {
	return logger.New(logger.ERROR)
}

func testMetrics() metrics.RelayMetrics {
	return metrics.NewRelayMetrics(prometheus.NewRegistry(), testLogger())
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) FindByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	args := m.Called(ctx, customerID)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

type mockLinkRepo struct {
	mock.Mock
}

func (m *mockLinkRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerLink, error) {
	args := m.Called(ctx, userID)
	if l := args.Get(0); l != nil {
		return l.(*domain.CustomerLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkRepo) Link(ctx context.Context, userID uuid.UUID, customerID string) (bool, error) {
	args := m.Called(ctx, userID, customerID)
	return args.Bool(0), args.Error(1)
}

type mockCustomerSource struct {
	mock.Mock
}

func (m *mockCustomerSource) GetCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	args := m.Called(ctx, customerID)
	if c := args.Get(0); c != nil {
		return c.(*domain.ProcessorCustomer), args.Error(1)
	}
	return nil, args.Error(1)
}

// memoryOrders is an in-memory OrderRepository keyed by checkout_session_id
type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]domain.OrderRecord
	err    error
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: map[string]domain.OrderRecord{}}
}

func (r *memoryOrders) ExistsBySessionID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	return ok, nil
}

func (r *memoryOrders) Create(_ context.Context, o *domain.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.orders[o.CheckoutSessionID]; ok {
		return domain.ErrDuplicate
	}
	r.orders[o.CheckoutSessionID] = *o
	return nil
}

func (r *memoryOrders) ListByUserID(context.Context, uuid.UUID) ([]domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OrderRecord, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

func (r *memoryOrders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// fakeDestination records payloads and returns scripted results
type fakeDestination struct {
	name     string
	err      error
	status   int
	mu       sync.Mutex
	payloads []any
	headers  []map[string]string
}

func (d *fakeDestination) Name() string { return d.name }

func (d *fakeDestination) Dispatch(_ context.Context, payload any, headers map[string]string) (notify.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
	d.headers = append(d.headers, headers)
	status := d.status
	if status == 0 {
		status = 200
	}
	if d.err != nil {
		return notify.Result{Attempts: 3, StatusCode: status}, d.err
	}
	return notify.Result{Attempts: 1, StatusCode: status, Success: true}, nil
}

func (d *fakeDestination) Send(ctx context.Context, body []byte, headers map[string]string) (notify.Result, error) {
	return d.Dispatch(ctx, body, headers)
}

func (d *fakeDestination) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Publish(ctx context.Context, topic string, msg kafka.PurchaseMessage) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *mockProducer) Close() error {
	return m.Called().Error(0)
}

type mockCheckoutGateway struct {
	mock.Mock
}

func (m *mockCheckoutGateway) GetOrCreateCustomer(ctx context.Context, userID, email, fullName string) (string, error) {
	args := m.Called(ctx, userID, email, fullName)
	return args.String(0), args.Error(1)
}

func (m *mockCheckoutGateway) CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, p)
	if s := args.Get(0); s != nil {
		return s.(*stripe.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSubscriptionSource struct {
	mock.Mock
}

func (m *mockSubscriptionSource) LatestSubscription(ctx context.Context, customerID string) (*domain.SubscriptionState, error) {
	args := m.Called(ctx, customerID)
	if s := args.Get(0); s != nil {
		return s.(*domain.SubscriptionState), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Upsert(ctx context.Context, state *domain.SubscriptionState) error {
	return m.Called(ctx, state).Error(0)
}
