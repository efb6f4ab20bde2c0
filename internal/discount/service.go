package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

var hundred = decimal.NewFromInt(100)

type Service struct {
	db *store.DB
}

func NewService(db *store.DB) *Service { return &Service{db: db} }

type CreateInput struct {
	Name           string          `json:"name"`
	Percentage     decimal.Decimal `json:"percentage"`
	MinOrderAmount money.Money     `json:"min_order_amount"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
}

func requireAdmin(pol identity.Policy) error {
	if !pol.Authenticated() {
		return apperr.ErrUnauthorized
	}
	if !pol.CanManageDiscounts() {
		return apperr.Forbidden("only admins can manage discounts")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, pol identity.Policy, in CreateInput) (*Rule, error) {
	if err := requireAdmin(pol); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, apperr.Invalid("discount name is required")
	case !in.Percentage.IsPositive() || in.Percentage.GreaterThan(hundred):
		return nil, apperr.Invalid("percentage must be greater than 0 and at most 100")
	case in.MinOrderAmount < 0:
		return nil, apperr.Invalid("minimum order amount cannot be negative")
	case in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom):
		return nil, apperr.Invalid("valid_to is before valid_from")
	}
	r := &Rule{
		Name:           in.Name,
		Percentage:     in.Percentage,
		MinOrderAmount: in.MinOrderAmount,
		ValidFrom:      in.ValidFrom,
		ValidTo:        in.ValidTo,
		Active:         true,
	}
	if err := NewRepository(s.db).Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, pol identity.Policy) ([]Rule, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.IsStaff() {
		return nil, apperr.Forbidden("only staff can list discounts")
	}
	return NewRepository(s.db).List(ctx)
}

func (s *Service) Deactivate(ctx context.Context, pol identity.Policy, id int64) error {
	if err := requireAdmin(pol); err != nil {
		return err
	}
	err := NewRepository(s.db).Deactivate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("discount rule %d not found", id)
	}
	return err
}
