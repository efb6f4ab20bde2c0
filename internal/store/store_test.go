package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name, driver, in, want string
	}{
		{"sqlite untouched", DriverSQLite, "SELECT * FROM books WHERE id=?", "SELECT * FROM books WHERE id=?"},
		{"pgx numbered", DriverPgx, "UPDATE books SET stock_qty=stock_qty-? WHERE id=? AND stock_qty>=?",
			"UPDATE books SET stock_qty=stock_qty-$1 WHERE id=$2 AND stock_qty>=$3"},
		{"quoted literal kept", DriverPgx, "SELECT '?' , ? FROM t", "SELECT '?' , $1 FROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rebind(tt.driver, tt.in))
		})
	}
}

func TestBuildDSN(t *testing.T) {
	_, err := buildDSN("mysql", "x")
	assert.Error(t, err)

	_, err = buildDSN(DriverPgx, "bookdist.db")
	assert.Error(t, err)

	dsn, err := buildDSN(DriverPgx, "postgres://u:p@localhost:5432/bookdist?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/bookdist?sslmode=disable", dsn)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO books(title, author, price_cents, stock_qty, reorder_level, active, created_unix, updated_unix)
VALUES(?,?,?,?,?,?,?,?)`, "Dune", "Herbert", 1000, 3, 1, true, NowUnix(), NowUnix())
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&n))
	assert.Zero(t, n)
}

func TestInTx_Commits(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO books(title, author, price_cents, stock_qty, reorder_level, active, created_unix, updated_unix)
VALUES(?,?,?,?,?,?,?,?)`, "Dune", "Herbert", 1000, 3, 1, true, NowUnix(), NowUnix())
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestStockNeverNegative(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
INSERT INTO books(title, author, price_cents, stock_qty, reorder_level, active, created_unix, updated_unix)
VALUES(?,?,?,?,?,?,?,?)`, "Dune", "Herbert", 1000, 1, 0, true, NowUnix(), NowUnix())
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE books SET stock_qty = stock_qty - 2`)
	assert.Error(t, err, "CHECK constraint must reject negative stock")
}

func TestLockQuery(t *testing.T) {
	assert.Equal(t, "SELECT id FROM users WHERE id=?", lockQuery(DriverSQLite, "users"))
	assert.Equal(t, "SELECT id FROM users WHERE id=? FOR UPDATE", lockQuery(DriverPgx, "users"))
	assert.Equal(t, "SELECT id FROM users WHERE id=$1 FOR UPDATE", rebind(DriverPgx, lockQuery(DriverPgx, "users")))
}

func TestLockRow(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO users(username,password_hash,role,created_unix) VALUES('ana','x','admin',0)`)
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx *Tx) error {
		var id int64
		require.NoError(t, tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username='ana'`).Scan(&id))
		require.NoError(t, tx.LockRow(ctx, "users", id))
		return tx.LockRow(ctx, "users", id+100)
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}
