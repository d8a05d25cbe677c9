package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
)

// CheckoutGateway is the processor API used to start a checkout
type CheckoutGateway interface {
	GetOrCreateCustomer(ctx context.Context, userID, email, fullName string) (string, error)
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripe.CheckoutSession, error)
}

// CheckoutService creates hosted checkout sessions for signed-in users
type CheckoutService struct {
	gateway CheckoutGateway
	users   repository.UserRepository
	links   repository.CustomerLinkRepository
	priceID string
	log     *logger.Logger
}

// NewCheckoutService создает сервис оплаты. Пустой priceID разрешает любую цену.
func NewCheckoutService(gateway CheckoutGateway, users repository.UserRepository, links repository.CustomerLinkRepository, priceID string, log *logger.Logger) *CheckoutService {
	return &CheckoutService{
		gateway: gateway,
		users:   users,
		links:   links,
		priceID: priceID,
		log:     log,
	}
}

// CreateSession stores the name typed on the checkout form, makes sure the
// user has a processor customer and opens a session carrying the name in its
// metadata.
func (s *CheckoutService) CreateSession(ctx context.Context, userID uuid.UUID, email string, req domain.CheckoutRequest) (*stripe.CheckoutSession, error) {
	if s.priceID != "" && req.PriceID != s.priceID {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrice, req.PriceID)
	}
	fullName := strings.TrimSpace(req.FullName)

	if err := s.users.Upsert(ctx, &domain.User{
		ID:             userID,
		Email:          email,
		FullName:       fullName,
		EmailConfirmed: true,
	}); err != nil {
		return nil, err
	}

	customerID, err := s.customerFor(ctx, userID, email, fullName)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		CustomerID: customerID,
		PriceID:    req.PriceID,
		Mode:       req.Mode,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		UserID:     userID.String(),
		FullName:   fullName,
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Checkout session created", "userID", userID, "sessionID", session.ID)
	return session, nil
}

func (s *CheckoutService) customerFor(ctx context.Context, userID uuid.UUID, email, fullName string) (string, error) {
	link, err := s.links.FindByUserID(ctx, userID)
	switch {
	case err == nil && !strings.HasPrefix(link.CustomerID, provisionedPrefix):
		return link.CustomerID, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return "", err
	}

	customerID, err := s.gateway.GetOrCreateCustomer(ctx, userID.String(), email, fullName)
	if err != nil {
		return "", err
	}

	// A user provisioned by the learning platform keeps its existing link.
	if link == nil {
		if _, err := s.links.Link(ctx, userID, customerID); err != nil {
			return "", err
		}
	}
	return customerID, nil
}
