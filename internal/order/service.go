package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/cart"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/logging"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

const (
	ChannelStaff    = "staff"
	ChannelCheckout = "checkout"
)

// Settings are the pricing knobs that come from configuration.
type Settings struct {
	// DefaultCreditLimit is given to customers created on their first checkout.
	DefaultCreditLimit money.Money
	// TaxRate is a percentage applied to the discounted subtotal at checkout.
	TaxRate decimal.Decimal
}

type Service struct {
	db     *store.DB
	events events.Publisher
	cfg    Settings
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(db *store.DB, pub events.Publisher, cfg Settings) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		db:     db,
		events: pub,
		cfg:    cfg,
		now:    time.Now,
		log:    logging.Component("order"),
	}
}

// CreateOrderInput is what staff submit. Discount and tax are declared by the caller.
type CreateOrderInput struct {
	CustomerID         int64           `json:"customer_id"`
	Items              []Line          `json:"items"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Tax                money.Money     `json:"tax"`
	Notes              string          `json:"notes"`
}

// CreateOrder places an order on behalf of a customer. Staff orders do not go
// through the credit guard.
func (s *Service) CreateOrder(ctx context.Context, pol identity.Policy, in CreateOrderInput) (*Order, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.CanCreateOrders() {
		return nil, apperr.Forbidden("only staff can create orders")
	}
	if !validPercentage(in.DiscountPercentage) {
		return nil, apperr.Invalid("discount percentage must be between 0 and 100")
	}
	if in.Tax < 0 || in.Tax > money.Max {
		return nil, apperr.Invalid("tax must be between 0 and %s", money.Max)
	}

	var o *Order
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		c, err := customer.NewRepository(tx).Get(ctx, in.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.InvalidReference("customer %d not found", in.CustomerID)
		}
		if err != nil {
			return err
		}
		if !pol.CanServeCustomer(c.SalesmanID) {
			return apperr.Forbidden("customer %d is not assigned to you", c.ID)
		}

		eng := newEngine(tx)
		items, err := eng.price(ctx, in.Items, true)
		if err != nil {
			return err
		}
		q := newQuote(items, in.DiscountPercentage)
		q.setTax(in.Tax)

		o, err = s.persist(ctx, tx, eng, c.ID, pol.UserID(), q, in.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.published(ctx, o, ChannelStaff)
	return o, nil
}

// Checkout turns the caller's cart into an order priced from the live catalog.
// The customer record is created on first use; nothing persists if any step fails.
func (s *Service) Checkout(ctx context.Context, pol identity.Policy, notes string) (*Order, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.CanCheckout() {
		return nil, apperr.Forbidden("only customers can check out")
	}
	p := pol.Principal()

	var o *Order
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		// one checkout per user at a time: cart, exposure and customer creation
		// are read and written under this lock
		if err := tx.LockRow(ctx, "users", p.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrUnauthorized
			}
			return err
		}
		c, err := s.ownCustomer(ctx, tx, p)
		if err != nil {
			return err
		}

		carts := cart.NewRepository(tx)
		crt, err := carts.Get(ctx, p.UserID)
		if err != nil {
			return err
		}
		if crt.Empty() {
			return apperr.Invalid("cart is empty")
		}
		lines := make([]Line, 0, len(crt.Items))
		for _, it := range crt.Items {
			lines = append(lines, Line{BookID: it.BookID, Qty: it.Qty})
		}

		eng := newEngine(tx)
		items, err := eng.price(ctx, lines, false)
		if err != nil {
			return err
		}

		rules, err := discount.NewRepository(tx).ListActive(ctx)
		if err != nil {
			return fmt.Errorf("load discounts: %w", err)
		}
		q := newQuote(items, discount.BestPercentage(rules, subtotalOf(items), s.now()))
		q.setTax((q.Subtotal - q.Discount).Percent(s.cfg.TaxRate))

		exp, err := customer.NewRepository(tx).Exposure(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := CheckCredit(exp, c.CreditLimit, q.Total); err != nil {
			return err
		}

		if o, err = s.persist(ctx, tx, eng, c.ID, p.UserID, q, notes); err != nil {
			return err
		}
		return carts.Clear(ctx, p.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.published(ctx, o, ChannelCheckout)
	return o, nil
}

func (s *Service) ownCustomer(ctx context.Context, q store.Querier, p *identity.Principal) (*customer.Customer, error) {
	repo := customer.NewRepository(q)
	c, err := repo.GetByUserID(ctx, p.UserID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	uid := p.UserID
	c = &customer.Customer{Name: p.Username, CreditLimit: s.cfg.DefaultCreditLimit, UserID: &uid}
	if err := repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.log.Info().Int64("customer", c.ID).Int64("user", uid).Msg("customer created at checkout")
	return c, nil
}

// persist stores the quote as a confirmed order and commits its stock, then
// reads it back so the caller gets exactly what was stored.
func (s *Service) persist(ctx context.Context, tx *store.Tx, eng engine, customerID, createdBy int64, q Quote, notes string) (*Order, error) {
	o := &Order{
		OrderNumber:        s.orderNumber(),
		CustomerID:         customerID,
		CreatedBy:          createdBy,
		Status:             StatusConfirmed,
		Subtotal:           q.Subtotal,
		DiscountPercentage: q.DiscountPercentage,
		Discount:           q.Discount,
		Tax:                q.Tax,
		Total:              q.Total,
		Notes:              strings.TrimSpace(notes),
		Items:              q.Items,
	}
	if err := eng.commitStock(ctx, o.Items); err != nil {
		return nil, err
	}
	repo := NewRepository(tx)
	if err := repo.Insert(ctx, o); err != nil {
		return nil, err
	}
	return repo.Get(ctx, o.ID)
}

func (s *Service) orderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), suffix)
}

func (s *Service) published(ctx context.Context, o *Order, channel string) {
	s.log.Info().Int64("order", o.ID).Str("number", o.OrderNumber).Str("channel", channel).
		Str("total", o.Total.String()).Msg("order created")

	evt := events.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		CreatedBy:   o.CreatedBy,
		Channel:     channel,
		TotalCents:  o.Total.Cents(),
	}
	for _, it := range o.Items {
		evt.Items = append(evt.Items, events.OrderItemEvt{
			BookID: it.BookID, Qty: it.Qty, UnitCents: it.UnitPrice.Cents(), LineCents: it.LineTotal.Cents(),
		})
	}
	if err := s.events.Publish(ctx, events.RKOrderCreated, evt); err != nil {
		s.log.Warn().Err(err).Int64("order", o.ID).Msg("publish order.created failed")
	}
}

func (s *Service) GetOrder(ctx context.Context, pol identity.Policy, id int64) (*Order, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	o, err := NewRepository(s.db).Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("order %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if !pol.CanViewOrder(o.CreatedBy, o.Customer.SalesmanID, o.Customer.UserID) {
		return nil, apperr.Forbidden("order %d is not accessible", id)
	}
	return o, nil
}

// ListOrders returns the orders the caller may see: everything for admins,
// created or assigned ones for salesmen, their own for customers.
func (s *Service) ListOrders(ctx context.Context, pol identity.Policy, f ListFilter) ([]*Order, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	switch {
	case pol.IsAdmin():
	case pol.IsSalesman():
		f.SalesmanID = pol.UserID()
	case pol.IsCustomer():
		f.CustomerUserID = pol.UserID()
	default:
		return nil, apperr.ErrForbidden
	}
	return NewRepository(s.db).List(ctx, f)
}

// UpdateStatus moves an order along its lifecycle. Cancelling puts the ordered
// stock back in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, pol identity.Policy, id int64, to Status) (*Order, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	var o *Order
	var from Status
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		repo := NewRepository(tx)
		cur, err := repo.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("order %d not found", id)
		}
		if err != nil {
			return err
		}
		if !pol.CanChangeOrderStatus(cur.CreatedBy) {
			return apperr.Forbidden("you cannot change the status of order %d", id)
		}
		from = cur.Status
		if !from.CanTransition(to) {
			return apperr.Invalid("order %s cannot go from %s to %s", cur.OrderNumber, from, to)
		}
		if err := repo.UpdateStatus(ctx, id, from, to); err != nil {
			return err
		}
		if to == StatusCancelled {
			if err := newEngine(tx).restoreStock(ctx, cur.Items); err != nil {
				return err
			}
		}
		o, err = repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("order", id).Str("from", string(from)).Str("to", string(to)).Msg("order status changed")
	evt := events.OrderStatusChanged{OrderID: id, From: string(from), To: string(to), By: pol.UserID()}
	if err := s.events.Publish(ctx, events.RKOrderStatusChanged, evt); err != nil {
		s.log.Warn().Err(err).Int64("order", id).Msg("publish order.status_changed failed")
	}
	return o, nil
}
