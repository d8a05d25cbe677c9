package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/pkg/logger"
)

// UserLookup is the part of local user storage the resolver reads
type UserLookup interface {
	FindByCustomerID(ctx context.Context, customerID string) (*domain.User, error)
}

// Resolver determines the payer's name and email for a payment event.
//
// Name: event metadata, then the local user linked to the customer, then the
// processor customer (metadata first, then its name field). A name is never
// derived from the email address.
// Email: the event itself, then the processor customer, then the local user.
type Resolver struct {
	users     UserLookup
	customers repository.CustomerSource
	log       *logger.Logger
}

// NewResolver создает резолвер. customers может быть nil, если ключ API
// платежной системы не настроен.
func NewResolver(users UserLookup, customers repository.CustomerSource, log *logger.Logger) *Resolver {
	return &Resolver{users: users, customers: customers, log: log}
}

// Resolve returns domain.ErrEmailUnresolved or domain.ErrNameUnresolved when
// the respective field cannot be determined. Lookup failures are logged and
// treated as "not found".
func (r *Resolver) Resolve(ctx context.Context, e domain.PaymentEvent) (*domain.CustomerRecord, error) {
	rec := &domain.CustomerRecord{
		Name:       cleanName(e.MetadataName()),
		Email:      strings.TrimSpace(e.Email),
		CustomerID: e.CustomerID,
	}

	var local *domain.User
	if rec.CustomerID != "" && (rec.Name == "" || rec.Email == "") {
		local = r.localUser(ctx, rec.CustomerID)
		if rec.Name == "" && local != nil {
			rec.Name = cleanName(local.FullName)
		}
	}

	if rec.CustomerID != "" && (rec.Name == "" || rec.Email == "") {
		if pc := r.processorCustomer(ctx, rec.CustomerID); pc != nil {
			if rec.Name == "" {
				rec.Name = cleanName(pc.FullName())
			}
			if rec.Email == "" {
				rec.Email = strings.TrimSpace(pc.Email)
			}
		}
	}

	if rec.Email == "" && local != nil {
		rec.Email = strings.TrimSpace(local.Email)
	}

	if rec.Email == "" {
		return rec, domain.ErrEmailUnresolved
	}
	if rec.Name == "" {
		return rec, domain.ErrNameUnresolved
	}
	return rec, nil
}

func (r *Resolver) localUser(ctx context.Context, customerID string) *domain.User {
	if r.users == nil {
		return nil
	}
	u, err := r.users.FindByCustomerID(ctx, customerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warnw("Local user lookup failed", "customerID", customerID, "error", err)
		}
		return nil
	}
	return u
}

func (r *Resolver) processorCustomer(ctx context.Context, customerID string) *domain.ProcessorCustomer {
	if r.customers == nil {
		return nil
	}
	c, err := r.customers.GetCustomer(ctx, customerID)
	if err != nil {
		r.log.Warnw("Processor customer lookup failed", "customerID", customerID, "error", err)
		return nil
	}
	if c.Deleted {
		return nil
	}
	return c
}

// cleanName trims the value and rejects anything that looks like an email
// address.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		return ""
	}
	return s
}
