package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahinestrog/bookdist/internal/store"
)

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

const ruleColumns = `id,name,percentage,min_order_cents,valid_from_unix,valid_to_unix,active`

func scanRule(row interface{ Scan(...any) error }) (*Rule, error) {
	var r Rule
	var from, to sql.NullInt64
	if err := row.Scan(&r.ID, &r.Name, &r.Percentage, &r.MinOrderAmount, &from, &to, &r.Active); err != nil {
		return nil, err
	}
	r.ValidFrom = unixPtr(from)
	r.ValidTo = unixPtr(to)
	return &r, nil
}

func unixPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func (r *Repository) list(ctx context.Context, query string) ([]Rule, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// ListActive is the snapshot the resolver works on.
func (r *Repository) ListActive(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM discount_rules WHERE active = TRUE ORDER BY id`)
}

func (r *Repository) List(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM discount_rules ORDER BY id`)
}

func (r *Repository) Get(ctx context.Context, id int64) (*Rule, error) {
	rule, err := scanRule(r.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM discount_rules WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discount rule %d: %w", id, store.ErrNotFound)
	}
	return rule, err
}

func (r *Repository) Create(ctx context.Context, rule *Rule) error {
	return r.q.QueryRowContext(ctx, `
INSERT INTO discount_rules(name,percentage,min_order_cents,valid_from_unix,valid_to_unix,active)
VALUES(?,?,?,?,?,?) RETURNING id`,
		rule.Name, rule.Percentage.String(), rule.MinOrderAmount,
		nullUnix(rule.ValidFrom), nullUnix(rule.ValidTo), rule.Active).Scan(&rule.ID)
}

func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE discount_rules SET active = FALSE WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("discount rule %d: %w", id, store.ErrNotFound)
	}
	return nil
}
