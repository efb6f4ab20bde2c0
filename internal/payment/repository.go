package payment

import (
	"context"
	"database/sql"

	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Payment struct {
	ID          int64       `json:"id"`
	CustomerID  int64       `json:"customer_id"`
	OrderID     *int64      `json:"order_id,omitempty"`
	Amount      money.Money `json:"amount"`
	Method      string      `json:"method"`
	RecordedBy  int64       `json:"recorded_by"`
	CreatedUnix int64       `json:"created_unix"`
}

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) Insert(ctx context.Context, p *Payment) error {
	p.CreatedUnix = store.NowUnix()
	return r.q.QueryRowContext(ctx, `
INSERT INTO payments(customer_id,order_id,amount_cents,method,recorded_by,created_unix)
VALUES(?,?,?,?,?,?) RETURNING id`,
		p.CustomerID, p.OrderID, p.Amount, p.Method, p.RecordedBy, p.CreatedUnix).Scan(&p.ID)
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]*Payment, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT id,customer_id,order_id,amount_cents,method,recorded_by,created_unix
FROM payments WHERE customer_id=? ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		var p Payment
		var orderID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.CustomerID, &orderID, &p.Amount, &p.Method, &p.RecordedBy, &p.CreatedUnix); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := orderID.Int64
			p.OrderID = &id
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// OrderCustomer returns the customer that owns orderID.
func (r *Repository) OrderCustomer(ctx context.Context, orderID int64) (int64, error) {
	var cid int64
	err := r.q.QueryRowContext(ctx, `SELECT customer_id FROM orders WHERE id=?`, orderID).Scan(&cid)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	return cid, err
}
