package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Service struct {
	repo *Repository
}

func NewService(db *store.DB) *Service { return &Service{repo: NewRepository(db)} }

type CreateInput struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	CreditLimit money.Money `json:"credit_limit"`
	UserID      *int64      `json:"user_id,omitempty"`
	SalesmanID  *int64      `json:"salesman_id,omitempty"`
}

// Create adds a customer. A salesman always becomes the assigned salesman.
func (s *Service) Create(ctx context.Context, pol identity.Policy, in CreateInput) (*Customer, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.CanManageCustomers() {
		return nil, apperr.Forbidden("only staff can create customers")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Invalid("customer name is required")
	}
	if in.CreditLimit < 0 {
		return nil, apperr.Invalid("credit limit cannot be negative")
	}
	if pol.IsSalesman() {
		uid := pol.UserID()
		in.SalesmanID = &uid
	}
	c := &Customer{
		Name:        in.Name,
		Email:       strings.TrimSpace(in.Email),
		CreditLimit: in.CreditLimit,
		UserID:      in.UserID,
		SalesmanID:  in.SalesmanID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, pol identity.Policy, id int64) (*Customer, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("customer %d not found", id)
		}
		return nil, err
	}
	if !pol.CanViewCustomer(c.SalesmanID, c.UserID) {
		return nil, apperr.Forbidden("customer %d is not accessible", id)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, pol identity.Policy) ([]*Customer, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	switch {
	case pol.IsAdmin():
		return s.repo.List(ctx, nil)
	case pol.IsSalesman():
		uid := pol.UserID()
		return s.repo.List(ctx, &uid)
	default:
		return nil, apperr.Forbidden("only staff can list customers")
	}
}

// Balance reports the customer's exposure against its credit limit.
func (s *Service) Balance(ctx context.Context, pol identity.Policy, id int64) (*Customer, Exposure, error) {
	c, err := s.Get(ctx, pol, id)
	if err != nil {
		return nil, Exposure{}, err
	}
	e, err := s.repo.Exposure(ctx, id)
	return c, e, err
}
