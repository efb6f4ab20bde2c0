package cart

import (
	"context"
	"errors"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Service struct {
	db *store.DB
}

func NewService(db *store.DB) *Service { return &Service{db: db} }

func requireShopper(pol identity.Policy) error {
	if !pol.Authenticated() {
		return apperr.ErrUnauthorized
	}
	if !pol.CanCheckout() {
		return apperr.Forbidden("only customers have a cart")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, pol identity.Policy) (*Cart, error) {
	if err := requireShopper(pol); err != nil {
		return nil, err
	}
	return NewRepository(s.db).Get(ctx, pol.UserID())
}

// Add puts qty more copies of a book in the cart. Stock is only checked at checkout.
func (s *Service) Add(ctx context.Context, pol identity.Policy, bookID int64, qty int) (*Cart, error) {
	if err := requireShopper(pol); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperr.Invalid("quantity must be positive")
	}
	var c *Cart
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := checkAvailable(ctx, tx, bookID); err != nil {
			return err
		}
		repo := NewRepository(tx)
		if err := repo.AddItem(ctx, pol.UserID(), bookID, qty); err != nil {
			return err
		}
		var err error
		c, err = repo.Get(ctx, pol.UserID())
		return err
	})
	return c, err
}

func (s *Service) SetQty(ctx context.Context, pol identity.Policy, bookID int64, qty int) (*Cart, error) {
	if err := requireShopper(pol); err != nil {
		return nil, err
	}
	var c *Cart
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if qty > 0 {
			if err := checkAvailable(ctx, tx, bookID); err != nil {
				return err
			}
		}
		repo := NewRepository(tx)
		if err := repo.SetQty(ctx, pol.UserID(), bookID, qty); err != nil {
			return err
		}
		var err error
		c, err = repo.Get(ctx, pol.UserID())
		return err
	})
	return c, err
}

func checkAvailable(ctx context.Context, q store.Querier, bookID int64) error {
	b, err := catalog.NewRepository(q).Get(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !b.Active) {
		return apperr.InvalidReference("book %d is not available", bookID)
	}
	return err
}

func (s *Service) Remove(ctx context.Context, pol identity.Policy, bookID int64) (*Cart, error) {
	return s.SetQty(ctx, pol, bookID, 0)
}

func (s *Service) Clear(ctx context.Context, pol identity.Policy) (*Cart, error) {
	if err := requireShopper(pol); err != nil {
		return nil, err
	}
	repo := NewRepository(s.db)
	if err := repo.Clear(ctx, pol.UserID()); err != nil {
		return nil, err
	}
	return repo.Get(ctx, pol.UserID())
}
