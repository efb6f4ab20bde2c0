package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	db     *store.DB
	events events.Publisher
}

func NewService(db *store.DB, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{db: db, events: pub}
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.events.Publish(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("rk", key).Msg("catalog: publish failed")
	}
}

type Page struct {
	Items      []*Book `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	TotalItems int64   `json:"total_items"`
}

// List pages through the catalog. Customers only ever see active books.
func (s *Service) List(ctx context.Context, pol identity.Policy, query string, page, size int) (*Page, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	f := ListFilter{Query: query, ActiveOnly: !pol.IsStaff(), Limit: size, Offset: (page - 1) * size}
	repo := NewRepository(s.db)

	total, err := repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	items, err := repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
		TotalItems: total,
	}, nil
}

func (s *Service) Get(ctx context.Context, pol identity.Policy, id int64) (*Book, error) {
	b, err := NewRepository(s.db).Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !b.Active && !pol.IsStaff()) {
		return nil, apperr.NotFound("book %d not found", id)
	}
	return b, err
}

type BookInput struct {
	Title        string      `json:"title"`
	Author       string      `json:"author"`
	Price        money.Money `json:"price"`
	StockQty     int         `json:"stock_qty"`
	ReorderLevel int         `json:"reorder_level"`
	Active       *bool       `json:"active,omitempty"`
}

func (in *BookInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	switch {
	case in.Title == "" || in.Author == "":
		return apperr.Invalid("title and author are required")
	case in.Price < 0:
		return apperr.Invalid("price cannot be negative")
	case in.Price > money.Max:
		return apperr.Invalid("price is over the maximum of %s", money.Max)
	case in.StockQty < 0 || in.ReorderLevel < 0:
		return apperr.Invalid("stock and reorder level cannot be negative")
	}
	return nil
}

func requireCatalogAdmin(pol identity.Policy) error {
	if !pol.Authenticated() {
		return apperr.ErrUnauthorized
	}
	if !pol.CanManageCatalog() {
		return apperr.Forbidden("only admins can change the catalog")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, pol identity.Policy, in BookInput) (*Book, error) {
	if err := requireCatalogAdmin(pol); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	b := &Book{
		Title:        in.Title,
		Author:       in.Author,
		Price:        in.Price,
		StockQty:     in.StockQty,
		ReorderLevel: in.ReorderLevel,
		Active:       in.Active == nil || *in.Active,
	}
	if err := NewRepository(s.db).Create(ctx, b); err != nil {
		return nil, err
	}
	s.publish(ctx, events.RKBookCreated, events.BookChanged{BookID: b.ID})
	return b, nil
}

// Update edits everything but stock; stock moves through receipts and orders.
func (s *Service) Update(ctx context.Context, pol identity.Policy, id int64, in BookInput) (*Book, error) {
	if err := requireCatalogAdmin(pol); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var b *Book
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		repo := NewRepository(tx)
		var err error
		if b, err = repo.Get(ctx, id); err != nil {
			return err
		}
		b.Title, b.Author, b.Price, b.ReorderLevel = in.Title, in.Author, in.Price, in.ReorderLevel
		if in.Active != nil {
			b.Active = *in.Active
		}
		return repo.Update(ctx, b)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("book %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.RKBookUpdated, events.BookChanged{BookID: b.ID})
	return b, nil
}

// Receive books an inbound stock receipt and raises stock in one transaction.
func (s *Service) Receive(ctx context.Context, pol identity.Policy, bookID int64, qty int, note string) (*Book, error) {
	if err := requireCatalogAdmin(pol); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperr.Invalid("received quantity must be positive")
	}
	var b *Book
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		repo := NewRepository(tx)
		if err := repo.IncrementStock(ctx, bookID, qty); err != nil {
			return err
		}
		rc := &Receipt{BookID: bookID, Qty: qty, Note: strings.TrimSpace(note), ReceivedBy: pol.UserID()}
		if err := repo.InsertReceipt(ctx, rc); err != nil {
			return err
		}
		var err error
		b, err = repo.Get(ctx, bookID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.InvalidReference("book %d not found", bookID)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Int64("book", bookID).Int("qty", qty).Int("stock", b.StockQty).Msg("stock received")
	s.publish(ctx, events.RKStockReceived, events.StockReceived{BookID: bookID, Qty: qty, StockQty: b.StockQty})
	return b, nil
}

func (s *Service) LowStock(ctx context.Context, pol identity.Policy) ([]*Book, error) {
	if !pol.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if !pol.IsStaff() {
		return nil, apperr.Forbidden("only staff can see stock levels")
	}
	return NewRepository(s.db).LowStock(ctx)
}
