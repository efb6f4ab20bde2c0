// Package customer stores customer accounts and their credit exposure.
package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Customer struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	CreditLimit money.Money `json:"credit_limit"`
	UserID      *int64      `json:"user_id,omitempty"`
	SalesmanID  *int64      `json:"salesman_id,omitempty"`
	CreatedUnix int64       `json:"created_unix"`
}

// Exposure is what the credit guard reads: everything billed and everything paid.
type Exposure struct {
	OrderTotal   money.Money `json:"order_total"`
	PaymentTotal money.Money `json:"payment_total"`
}

// Outstanding is the unpaid balance.
func (e Exposure) Outstanding() money.Money { return e.OrderTotal - e.PaymentTotal }

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

const customerColumns = `id,name,email,credit_limit_cents,user_id,salesman_id,created_unix`

func scanCustomer(row interface{ Scan(...any) error }) (*Customer, error) {
	var c Customer
	var userID, salesmanID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.CreditLimit, &userID, &salesmanID, &c.CreatedUnix); err != nil {
		return nil, err
	}
	c.UserID = fromNull(userID)
	c.SalesmanID = fromNull(salesmanID)
	return &c, nil
}

func fromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func (r *Repository) Create(ctx context.Context, c *Customer) error {
	c.CreatedUnix = store.NowUnix()
	return r.q.QueryRowContext(ctx, `
INSERT INTO customers(name,email,credit_limit_cents,user_id,salesman_id,created_unix)
VALUES(?,?,?,?,?,?) RETURNING id`,
		c.Name, c.Email, c.CreditLimit, c.UserID, c.SalesmanID, c.CreatedUnix).Scan(&c.ID)
}

func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := scanCustomer(r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return c, err
}

func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Customer, error) {
	c, err := scanCustomer(r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id=?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer for user %d: %w", userID, store.ErrNotFound)
	}
	return c, err
}

// List returns every customer, or only those assigned to salesmanID when set.
func (r *Repository) List(ctx context.Context, salesmanID *int64) ([]*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if salesmanID != nil {
		query += ` WHERE salesman_id=?`
		args = append(args, *salesmanID)
	}
	rows, err := r.q.QueryContext(ctx, query+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Exposure sums non-cancelled order totals and all payments of a customer.
func (r *Repository) Exposure(ctx context.Context, customerID int64) (Exposure, error) {
	var e Exposure
	if err := r.q.QueryRowContext(ctx, `
SELECT COALESCE(SUM(total_cents), 0) FROM orders WHERE customer_id=? AND status <> 'cancelled'`,
		customerID).Scan(&e.OrderTotal); err != nil {
		return e, fmt.Errorf("order total: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, `
SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE customer_id=?`,
		customerID).Scan(&e.PaymentTotal); err != nil {
		return e, fmt.Errorf("payment total: %w", err)
	}
	return e, nil
}
