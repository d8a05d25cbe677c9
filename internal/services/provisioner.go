package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/kafka"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	provisionedPrefix    = "kajabi_"
	metadataPlatformUser = "kajabi_user_id"
	generatedPasswordLen = 16
)

// Provisioning results
const (
	ProvisionCreated  = "created"
	ProvisionExisting = "existing"
	ProvisionFailed   = "failed"
)

// RawSender forwards a body without re-encoding it
type RawSender interface {
	Send(ctx context.Context, body []byte, headers map[string]string) (notify.Result, error)
}

// ProvisionResult reports what Provision did
type ProvisionResult struct {
	UserID      uuid.UUID
	UserCreated bool
	OrderID     string
	Forwarded   bool
}

// ProvisionerConfig holds the order defaults for provisioned purchases
type ProvisionerConfig struct {
	DefaultAmount   int64
	DefaultCurrency string
}

// Provisioner turns a learning-platform purchase webhook into a local account,
// a linked customer and an order, then forwards the original body.
type Provisioner struct {
	users    repository.UserRepository
	links    repository.CustomerLinkRepository
	recorder *Recorder
	forward  RawSender
	producer kafka.Producer
	metrics  metrics.RelayMetrics
	cfg      ProvisionerConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewProvisioner создает провижинер. forward и producer могут быть nil.
func NewProvisioner(
	users repository.UserRepository,
	links repository.CustomerLinkRepository,
	recorder *Recorder,
	forward RawSender,
	producer kafka.Producer,
	m metrics.RelayMetrics,
	cfg ProvisionerConfig,
	log *logger.Logger,
) *Provisioner {
	if cfg.DefaultAmount <= 0 {
		cfg.DefaultAmount = 19700
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	return &Provisioner{
		users:    users,
		links:    links,
		recorder: recorder,
		forward:  forward,
		producer: producer,
		metrics:  m,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Provision handles one validated request. rawBody is forwarded unmodified.
// Persistence failures are returned; a failed forward is only logged.
func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisioningRequest, rawBody []byte) (*ProvisionResult, error) {
	log := p.log.With("email", req.Email, "externalUserID", req.ExternalUserID)

	user, created, err := p.findOrCreateUser(ctx, req)
	if err != nil {
		p.metrics.IncProvisioned(ProvisionFailed)
		return nil, err
	}
	result := &ProvisionResult{UserID: user.ID, UserCreated: created}

	customerID := provisionedPrefix + req.ExternalUserID
	linked, err := p.links.Link(ctx, user.ID, customerID)
	if err != nil {
		p.metrics.IncProvisioned(ProvisionFailed)
		return nil, fmt.Errorf("link customer: %w", err)
	}
	if !linked {
		log.Debugw("User already linked to a customer", "userID", user.ID)
	}

	order := p.buildOrder(req, customerID)
	result.OrderID = order.CheckoutSessionID
	if _, err := p.recorder.Record(ctx, order); err != nil {
		p.metrics.IncProvisioned(ProvisionFailed)
		return nil, err
	}

	if created {
		p.metrics.IncProvisioned(ProvisionCreated)
	} else {
		p.metrics.IncProvisioned(ProvisionExisting)
	}

	if p.producer != nil {
		err := p.producer.Publish(ctx, kafka.TopicAccountProvisioned, kafka.PurchaseMessage{
			CheckoutSessionID: order.CheckoutSessionID,
			PaymentIntentID:   order.PaymentIntentID,
			CustomerID:        customerID,
			UserID:            user.ID.String(),
			Email:             req.Email,
			ExternalUserID:    req.ExternalUserID,
			AmountTotal:       order.AmountTotal,
			Currency:          order.Currency,
		})
		if err != nil {
			log.Warnw("Failed to publish provisioning event", "error", err)
		}
	}

	if p.forward != nil {
		if _, err := p.forward.Send(context.WithoutCancel(ctx), rawBody, nil); err != nil {
			log.Warnw("Forwarding provisioning webhook failed", "error", err)
		} else {
			result.Forwarded = true
		}
	}

	log.Infow("Account provisioned", "userID", user.ID, "created", created, "orderID", order.CheckoutSessionID)
	return result, nil
}

func (p *Provisioner) findOrCreateUser(ctx context.Context, req domain.ProvisioningRequest) (*domain.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := p.users.FindByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	hash, err := randomPasswordHash()
	if err != nil {
		return nil, false, err
	}
	user = &domain.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(req.Name),
		EmailConfirmed: true,
		Metadata: map[string]string{
			domain.MetadataFullName: strings.TrimSpace(req.Name),
			metadataPlatformUser:    req.ExternalUserID,
		},
	}

	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// created by a concurrent delivery of the same webhook
			existing, findErr := p.users.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, false, fmt.Errorf("find user after conflict: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func (p *Provisioner) buildOrder(req domain.ProvisioningRequest, customerID string) *domain.OrderRecord {
	ms := strconv.FormatInt(p.now().UnixMilli(), 10)

	purchase := req.PurchaseID
	if purchase == "" {
		purchase = req.ExternalUserID
	}
	txn := req.TransactionID
	if txn == "" {
		txn = req.ExternalUserID
	}

	amount, ok := req.Amount.Minor()
	if !ok {
		amount = p.cfg.DefaultAmount
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = p.cfg.DefaultCurrency
	}

	return &domain.OrderRecord{
		CheckoutSessionID: provisionedPrefix + purchase + "_" + ms,
		PaymentIntentID:   provisionedPrefix + txn + "_" + ms,
		CustomerID:        customerID,
		AmountSubtotal:    amount,
		AmountTotal:       amount,
		Currency:          currency,
		PaymentStatus:     domain.PaymentStatusPaid,
		Status:            domain.OrderStatusCompleted,
	}
}

func randomPasswordHash() (string, error) {
	password := rand.Text()[:generatedPasswordLen]
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
