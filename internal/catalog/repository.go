package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ahinestrog/bookdist/internal/store"
)

// ErrStockShortage is returned when a conditional decrement finds too little stock.
var ErrStockShortage = errors.New("insufficient stock")

type Repository struct {
	q store.Querier
}

// NewRepository binds the repository to a DB or a running transaction.
func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

const bookColumns = `id,title,author,price_cents,stock_qty,reorder_level,active,created_unix,updated_unix`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.StockQty, &b.ReorderLevel,
		&b.Active, &b.CreatedUnix, &b.UpdatedUnix); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Book, error) {
	b, err := scanBook(r.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, store.ErrNotFound)
	}
	return b, err
}

func whereClause(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	if q := strings.TrimSpace(f.Query); q != "" {
		qp := "%" + strings.ToLower(q) + "%"
		conds = append(conds, `(lower(title) LIKE ? OR lower(author) LIKE ?)`)
		args = append(args, qp, qp)
	}
	if f.ActiveOnly {
		conds = append(conds, `active = TRUE`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) Count(ctx context.Context, f ListFilter) (int64, error) {
	where, args := whereClause(f)
	var c int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`+where, args...).Scan(&c)
	return c, err
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Book, error) {
	where, args := whereClause(f)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LowStock lists active books at or below their reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]*Book, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE active = TRUE AND stock_qty <= reorder_level ORDER BY stock_qty, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, b *Book) error {
	now := store.NowUnix()
	b.CreatedUnix, b.UpdatedUnix = now, now
	return r.q.QueryRowContext(ctx, `
INSERT INTO books(title,author,price_cents,stock_qty,reorder_level,active,created_unix,updated_unix)
VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
		b.Title, b.Author, b.Price, b.StockQty, b.ReorderLevel, b.Active, b.CreatedUnix, b.UpdatedUnix).
		Scan(&b.ID)
}

// Update changes descriptive fields and price. Stock only moves through
// DecrementStock and IncrementStock.
func (r *Repository) Update(ctx context.Context, b *Book) error {
	b.UpdatedUnix = store.NowUnix()
	res, err := r.q.ExecContext(ctx, `
UPDATE books SET title=?, author=?, price_cents=?, reorder_level=?, active=?, updated_unix=?
WHERE id=?`, b.Title, b.Author, b.Price, b.ReorderLevel, b.Active, b.UpdatedUnix, b.ID)
	if err != nil {
		return err
	}
	return expectOne(res, b.ID)
}

// DecrementStock takes qty units only if that many are on hand; the check and the
// write are one statement so concurrent orders cannot both pass a stale read.
func (r *Repository) DecrementStock(ctx context.Context, id int64, qty int) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE books SET stock_qty = stock_qty - ?, updated_unix=?
WHERE id=? AND stock_qty >= ?`, qty, store.NowUnix(), id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, ErrStockShortage)
	}
	return nil
}

func (r *Repository) IncrementStock(ctx context.Context, id int64, qty int) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE books SET stock_qty = stock_qty + ?, updated_unix=? WHERE id=?`, qty, store.NowUnix(), id)
	if err != nil {
		return err
	}
	return expectOne(res, id)
}

func (r *Repository) InsertReceipt(ctx context.Context, rc *Receipt) error {
	rc.CreatedUnix = store.NowUnix()
	return r.q.QueryRowContext(ctx, `
INSERT INTO stock_receipts(book_id,qty,note,received_by,created_unix)
VALUES(?,?,?,?,?) RETURNING id`, rc.BookID, rc.Qty, rc.Note, rc.ReceivedBy, rc.CreatedUnix).
		Scan(&rc.ID)
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, store.ErrNotFound)
	}
	return nil
}
