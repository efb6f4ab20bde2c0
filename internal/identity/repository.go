package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ahinestrog/bookdist/internal/store"
)

type Repository struct {
	q store.Querier
}

func NewRepository(q store.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	u.CreatedUnix = store.NowUnix()
	return r.q.QueryRowContext(ctx,
		`INSERT INTO users(username,password_hash,role,created_unix) VALUES(?,?,?,?) RETURNING id`,
		u.Username, u.PasswordHash, string(u.Role), u.CreatedUnix).Scan(&u.ID)
}

func (r *Repository) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return u, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.q.QueryRowContext(ctx,
		`SELECT id,username,password_hash,role,created_unix FROM users WHERE username=?`, username))
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := r.scanUser(r.q.QueryRowContext(ctx,
		`SELECT id,username,password_hash,role,created_unix FROM users WHERE id=?`, id))
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

func (r *Repository) CreateSession(ctx context.Context, token string, userID, expiresUnix int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions(token,user_id,expires_unix) VALUES(?,?,?)`, token, userID, expiresUnix)
	return err
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token)
	return err
}

// PrincipalForToken joins the session, its user and the customer record linked to it.
func (r *Repository) PrincipalForToken(ctx context.Context, token string, nowUnix int64) (*Principal, int64, error) {
	var p Principal
	var role string
	var customerID sql.NullInt64
	var expires int64
	err := r.q.QueryRowContext(ctx, `
SELECT u.id, u.username, u.role, c.id, s.expires_unix
FROM sessions s
JOIN users u ON u.id = s.user_id
LEFT JOIN customers c ON c.user_id = u.id
WHERE s.token=? AND s.expires_unix > ?`, token, nowUnix).
		Scan(&p.UserID, &p.Username, &role, &customerID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrUnauthenticated
	}
	if err != nil {
		return nil, 0, err
	}
	p.Role = Role(role)
	if customerID.Valid {
		id := customerID.Int64
		p.CustomerID = &id
	}
	return &p, expires, nil
}
