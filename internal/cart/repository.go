// Operaciones de carrito
package cart

import (
	"context"
	"database/sql"

	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Cart struct {
	ID     int64       `json:"id"`
	UserID int64       `json:"user_id"`
	Items  []CartItem  `json:"items"`
	Total  money.Money `json:"total"`
}

// CartItem is priced from the live catalog each time the cart is read; the
// cart itself stores only book and quantity.
type CartItem struct {
	BookID    int64       `json:"book_id"`
	Title     string      `json:"title"`
	UnitPrice money.Money `json:"unit_price"`
	Qty       int         `json:"qty"`
	LineTotal money.Money `json:"line_total"`
}

func (c *Cart) Empty() bool { return c == nil || len(c.Items) == 0 }

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) cartID(ctx context.Context, userID int64) (int64, error) {
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO carts(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, userID); err != nil {
		return 0, err
	}
	var id int64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id=?`, userID).Scan(&id)
	return id, err
}

// Get returns the user's cart, creating an empty one on first use.
func (r *Repository) Get(ctx context.Context, userID int64) (*Cart, error) {
	id, err := r.cartID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := &Cart{ID: id, UserID: userID}

	rows, err := r.q.QueryContext(ctx, `
SELECT ci.book_id, b.title, b.price_cents, ci.qty
FROM cart_items ci JOIN books b ON b.id = ci.book_id
WHERE ci.cart_id=? ORDER BY ci.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.BookID, &it.Title, &it.UnitPrice, &it.Qty); err != nil {
			return nil, err
		}
		it.LineTotal = it.UnitPrice.Mul(it.Qty)
		c.Total += it.LineTotal
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (r *Repository) AddItem(ctx context.Context, userID, bookID int64, qty int) error {
	id, err := r.cartID(ctx, userID)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
INSERT INTO cart_items(cart_id, book_id, qty) VALUES (?, ?, ?)
ON CONFLICT(cart_id, book_id) DO UPDATE SET qty = cart_items.qty + excluded.qty`, id, bookID, qty)
	return err
}

// SetQty overwrites a line; qty <= 0 removes it.
func (r *Repository) SetQty(ctx context.Context, userID, bookID int64, qty int) error {
	id, err := r.cartID(ctx, userID)
	if err != nil {
		return err
	}
	if qty <= 0 {
		_, err = r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id=? AND book_id=?`, id, bookID)
		return err
	}
	_, err = r.q.ExecContext(ctx, `
INSERT INTO cart_items(cart_id, book_id, qty) VALUES (?, ?, ?)
ON CONFLICT(cart_id, book_id) DO UPDATE SET qty = excluded.qty`, id, bookID, qty)
	return err
}

func (r *Repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, `
DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id=?)`, userID)
	return err
}

// ItemCount is used by tests and the storefront badge.
func (r *Repository) ItemCount(ctx context.Context, userID int64) (int, error) {
	var n sql.NullInt64
	err := r.q.QueryRowContext(ctx, `
SELECT SUM(ci.qty) FROM cart_items ci JOIN carts c ON c.id = ci.cart_id WHERE c.user_id=?`, userID).Scan(&n)
	return int(n.Int64), err
}
