package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/store"
)

// ErrStatusChanged means the order moved on between read and update.
var ErrStatusChanged = errors.New("order status changed concurrently")

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) Insert(ctx context.Context, o *Order) error {
	now := store.NowUnix()
	o.CreatedUnix, o.UpdatedUnix = now, now
	err := r.q.QueryRowContext(ctx, `
INSERT INTO orders(order_number,customer_id,created_by,status,subtotal_cents,discount_percentage,
                   discount_cents,tax_cents,total_cents,notes,created_unix,updated_unix)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		o.OrderNumber, o.CustomerID, o.CreatedBy, string(o.Status), o.Subtotal, o.DiscountPercentage.String(),
		o.Discount, o.Tax, o.Total, o.Notes, o.CreatedUnix, o.UpdatedUnix).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := r.q.QueryRowContext(ctx, `
INSERT INTO order_items(order_id,book_id,title,qty,unit_price_cents,line_total_cents)
VALUES(?,?,?,?,?,?) RETURNING id`,
			it.OrderID, it.BookID, it.Title, it.Qty, it.UnitPrice, it.LineTotal).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderSelect = `
SELECT o.id, o.order_number, o.customer_id, o.created_by, o.status, o.subtotal_cents,
       o.discount_percentage, o.discount_cents, o.tax_cents, o.total_cents, o.notes,
       o.created_unix, o.updated_unix,
       c.name, c.email, c.user_id, c.salesman_id,
       u.username, u.role
FROM orders o
JOIN customers c ON c.id = o.customer_id
JOIN users u ON u.id = o.created_by`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var status string
	var cust CustomerSummary
	var creator UserSummary
	var userID, salesmanID sql.NullInt64
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CreatedBy, &status, &o.Subtotal,
		&o.DiscountPercentage, &o.Discount, &o.Tax, &o.Total, &o.Notes,
		&o.CreatedUnix, &o.UpdatedUnix,
		&cust.Name, &cust.Email, &userID, &salesmanID,
		&creator.Username, &creator.Role); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	cust.ID = o.CustomerID
	if userID.Valid {
		v := userID.Int64
		cust.UserID = &v
	}
	if salesmanID.Valid {
		v := salesmanID.Int64
		cust.SalesmanID = &v
	}
	creator.ID = o.CreatedBy
	o.Customer = &cust
	o.Creator = &creator
	return &o, nil
}

// Get loads an order with its items and summaries.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, orderSelect+` WHERE o.id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) items(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT id, order_id, book_id, title, qty, unit_price_cents, line_total_cents
FROM order_items WHERE order_id=? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.Qty, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListFilter narrows List. Zero values mean no restriction.
type ListFilter struct {
	CustomerID     int64
	SalesmanID     int64 // created by, or customer assigned to
	CustomerUserID int64
	Status         Status
	Limit          int
	Offset         int
}

func (f ListFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.CustomerID != 0 {
		conds = append(conds, `o.customer_id=?`)
		args = append(args, f.CustomerID)
	}
	if f.SalesmanID != 0 {
		conds = append(conds, `(o.created_by=? OR c.salesman_id=?)`)
		args = append(args, f.SalesmanID, f.SalesmanID)
	}
	if f.CustomerUserID != 0 {
		conds = append(conds, `c.user_id=?`)
		args = append(args, f.CustomerUserID)
	}
	if f.Status != "" {
		conds = append(conds, `o.status=?`)
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns order headers, newest first. Items are not loaded.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	where, args := f.where()
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit, f.Offset)
	rows, err := r.q.QueryContext(ctx, orderSelect+where+` ORDER BY o.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order from one status to another only if it is still in from.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE orders SET status=?, updated_unix=? WHERE id=? AND status=?`,
		string(to), store.NowUnix(), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Wrap(apperr.KindValidation, ErrStatusChanged,
			"order %d is no longer %s; reload it and try again", id, from)
	}
	return nil
}
