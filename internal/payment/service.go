// Package payment records money received from customers. Payments reduce the
// outstanding balance the credit guard checks at checkout.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Service struct {
	db *store.DB
}

func NewService(db *store.DB) *Service { return &Service{db: db} }

type RecordInput struct {
	CustomerID int64       `json:"customer_id"`
	OrderID    *int64      `json:"order_id,omitempty"`
	Amount     money.Money `json:"amount"`
	Method     string      `json:"method"`
}

func (s *Service) Record(ctx context.Context, pol identity.Policy, in RecordInput) (*Payment, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.CanRecordPayments() {
		return nil, apperr.Forbidden("only staff can record payments")
	}
	if in.Amount <= 0 {
		return nil, apperr.Invalid("payment amount must be positive")
	}

	var p *Payment
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		c, err := customer.NewRepository(tx).Get(ctx, in.CustomerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.InvalidReference("customer %d not found", in.CustomerID)
			}
			return err
		}
		if !pol.CanServeCustomer(c.SalesmanID) {
			return apperr.Forbidden("customer %d is not assigned to you", c.ID)
		}
		repo := NewRepository(tx)
		if in.OrderID != nil {
			owner, err := repo.OrderCustomer(ctx, *in.OrderID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.InvalidReference("order %d not found", *in.OrderID)
			}
			if err != nil {
				return err
			}
			if owner != c.ID {
				return apperr.Invalid("order %d does not belong to customer %d", *in.OrderID, c.ID)
			}
		}
		p = &Payment{
			CustomerID: c.ID,
			OrderID:    in.OrderID,
			Amount:     in.Amount,
			Method:     strings.TrimSpace(in.Method),
			RecordedBy: pol.UserID(),
		}
		return repo.Insert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("customer", p.CustomerID).Str("amount", p.Amount.String()).Msg("payment recorded")
	return p, nil
}

func (s *Service) ListByCustomer(ctx context.Context, pol identity.Policy, customerID int64) ([]*Payment, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	c, err := customer.NewRepository(s.db).Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("customer %d not found", customerID)
		}
		return nil, err
	}
	if !pol.CanViewCustomer(c.SalesmanID, c.UserID) {
		return nil, apperr.Forbidden("customer %d is not accessible", customerID)
	}
	return NewRepository(s.db).ListByCustomer(ctx, customerID)
}
