package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключ метаданных для связи Stripe Customer с вашим UserID
	metadataUserIDKey = "user_id"
)

// CheckoutParams describes a hosted checkout session for one product
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Mode       string // "payment" or "subscription"
	SuccessURL string
	CancelURL  string
	UserID     string
	FullName   string
}

// CheckoutSession is the part of a created session returned to the browser
type CheckoutSession struct {
	ID  string
	URL string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// GetCustomer загружает клиента по Stripe ID.
	GetCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error)

	// GetOrCreateCustomer ищет клиента по userID, если не находит - создает нового.
	GetOrCreateCustomer(ctx context.Context, userID, email, fullName string) (string, error)

	// CreateCheckoutSession создает сессию оплаты.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)

	// LatestSubscription возвращает последнюю подписку клиента, nil если подписок нет.
	LatestSubscription(ctx context.Context, customerID string) (*domain.SubscriptionState, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe. backends может быть nil,
// в тестах передаются backends с адресом локального сервера.
func NewStripeClient(apiKey string, backends *stripe.Backends, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// GetCustomer загружает клиента Stripe.
func (sc *stripeClient) GetCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := sc.client.Customers.Get(customerID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, fmt.Errorf("stripe: customer %s: %w", customerID, domain.ErrNotFound)
		}
		logStripeError(sc.log, "GetCustomer", err)
		return nil, domain.NewExternalServiceError("stripe", "customer_lookup", "failed to retrieve customer", statusOf(err), err)
	}

	return &domain.ProcessorCustomer{
		ID:       cus.ID,
		Email:    cus.Email,
		Name:     cus.Name,
		Metadata: cus.Metadata,
		Deleted:  cus.Deleted,
	}, nil
}

func (sc *stripeClient) createCustomer(ctx context.Context, userID, email, fullName string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataUserIDKey: userID,
		},
	}
	if fullName != "" {
		params.Name = stripe.String(fullName)
		params.Metadata[domain.MetadataFullName] = fullName
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// GetOrCreateCustomer ищет клиента по userID в метаданных, если не находит - создает нового.
func (sc *stripeClient) GetOrCreateCustomer(ctx context.Context, userID, email, fullName string) (string, error) {
	sc.log.Debugw("Searching for Stripe customer using Search API", "userID", userID)

	searchQuery := fmt.Sprintf("metadata['%s']:'%s'", metadataUserIDKey, userID)
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   searchQuery,
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	customers := sc.client.Customers.Search(searchParams)
	if customers.Next() {
		customer := customers.Customer()
		sc.log.Infow("Found existing Stripe customer via Search", "stripeCustomerID", customer.ID, "userID", userID)
		return customer.ID, nil
	}

	if err := customers.Err(); err != nil {
		logStripeError(sc.log, "SearchCustomers", err)
		var stripeErr *stripe.Error
		if !errors.As(err, &stripeErr) || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return "", fmt.Errorf("stripe: failed to search customer: %w", err)
		}
		sc.log.Warnw("Non-fatal error during customer search, proceeding to create", "error", err)
	}

	sc.log.Infow("Stripe customer not found via Search, creating new one", "userID", userID)
	return sc.createCustomer(ctx, userID, email, fullName)
}

// CreateCheckoutSession создает сессию Stripe Checkout с одной позицией.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	mode := p.Mode
	if mode == "" {
		mode = string(stripe.CheckoutSessionModePayment)
	}
	metadata := map[string]string{
		domain.MetadataFullName: p.FullName,
		metadataUserIDKey:       p.UserID,
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Metadata = metadata
	if mode == string(stripe.CheckoutSessionModePayment) {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		}
	}
	params.Context = ctx

	s, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", s.ID, "stripeCustomerID", p.CustomerID)
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// LatestSubscription returns the customer's most recent subscription in any
// status, or nil when the customer never subscribed.
func (sc *stripeClient) LatestSubscription(ctx context.Context, customerID string) (*domain.SubscriptionState, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx
	params.AddExpand("data.default_payment_method")

	it := sc.client.Subscriptions.List(params)
	if !it.Next() {
		if err := it.Err(); err != nil {
			logStripeError(sc.log, "ListSubscriptions", err)
			return nil, fmt.Errorf("stripe: failed to list subscriptions: %w", err)
		}
		return nil, nil
	}
	return subscriptionState(customerID, it.Subscription()), nil
}

func subscriptionState(customerID string, sub *stripe.Subscription) *domain.SubscriptionState {
	state := &domain.SubscriptionState{
		CustomerID:         customerID,
		SubscriptionID:     stripe.String(sub.ID),
		CurrentPeriodStart: stripe.Int64(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   stripe.Int64(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Status:             string(sub.Status),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = stripe.String(sub.Items.Data[0].Price.ID)
	}
	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		state.PaymentMethodBrand = stripe.String(string(pm.Card.Brand))
		state.PaymentMethodLast4 = stripe.String(pm.Card.Last4)
	}
	return state
}

func statusOf(err error) int {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode
	}
	return 0
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
