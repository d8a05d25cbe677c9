package services

import (
	"context"
	"testing"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func checkoutRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		PriceID:    "price_workshop",
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
		Mode:       "payment",
		FullName:   " Jane Doe ",
	}
}

func TestCheckoutCreatesCustomerAndSession(t *testing.T) {
	gw := new(mockCheckoutGateway)
	users := new(mockUserRepo)
	links := new(mockLinkRepo)
	userID := uuid.New()

	users.On("Upsert", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == userID && u.FullName == "Jane Doe" && u.Email == "jane@example.com"
	})).Return(nil)
	links.On("FindByUserID", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	gw.On("GetOrCreateCustomer", mock.Anything, userID.String(), "jane@example.com", "Jane Doe").Return("cus_1", nil)
	links.On("Link", mock.Anything, userID, "cus_1").Return(true, nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p stripe.CheckoutParams) bool {
		return p.CustomerID == "cus_1" && p.FullName == "Jane Doe" && p.UserID == userID.String()
	})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil)

	svc := NewCheckoutService(gw, users, links, "price_workshop", testLogger())
	session, err := svc.CreateSession(context.Background(), userID, "jane@example.com", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)

	gw.AssertExpectations(t)
	links.AssertExpectations(t)
}

func TestCheckoutReusesLinkedCustomer(t *testing.T) {
	gw := new(mockCheckoutGateway)
	users := new(mockUserRepo)
	links := new(mockLinkRepo)
	userID := uuid.New()

	users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	links.On("FindByUserID", mock.Anything, userID).Return(&domain.CustomerLink{UserID: userID, CustomerID: "cus_7"}, nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p stripe.CheckoutParams) bool {
		return p.CustomerID == "cus_7"
	})).Return(&stripe.CheckoutSession{ID: "cs_2"}, nil)

	_, err := NewCheckoutService(gw, users, links, "", testLogger()).
		CreateSession(context.Background(), userID, "jane@example.com", checkoutRequest())
	require.NoError(t, err)
	gw.AssertNotCalled(t, "GetOrCreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutProvisionedUserGetsProcessorCustomer(t *testing.T) {
	gw := new(mockCheckoutGateway)
	users := new(mockUserRepo)
	links := new(mockLinkRepo)
	userID := uuid.New()

	users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	links.On("FindByUserID", mock.Anything, userID).Return(&domain.CustomerLink{UserID: userID, CustomerID: "kajabi_k_1"}, nil)
	gw.On("GetOrCreateCustomer", mock.Anything, userID.String(), "jane@example.com", "Jane Doe").Return("cus_8", nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&stripe.CheckoutSession{ID: "cs_3"}, nil)

	_, err := NewCheckoutService(gw, users, links, "", testLogger()).
		CreateSession(context.Background(), userID, "jane@example.com", checkoutRequest())
	require.NoError(t, err)
	links.AssertNotCalled(t, "Link", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutRejectsUnknownPrice(t *testing.T) {
	svc := NewCheckoutService(new(mockCheckoutGateway), new(mockUserRepo), new(mockLinkRepo), "price_workshop", testLogger())
	req := checkoutRequest()
	req.PriceID = "price_other"

	_, err := svc.CreateSession(context.Background(), uuid.New(), "jane@example.com", req)
	assert.ErrorIs(t, err, domain.ErrUnknownPrice)
}
