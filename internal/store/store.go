// Package store opens the relational database shared by every bookdist component
// and runs multi-table work inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"             // registers "sqlite", 100% Go
)

const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
	DriverPgx     = "pgx"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// Querier is satisfied by *DB and *Tx so repositories run the same either way.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	db     *sql.DB
	driver string
}

// Open connects with the given driver. For the sqlite drivers target is a file
// path; for pgx it is a postgres:// DSN.
func Open(ctx context.Context, driver, target string) (*DB, error) {
	dsn, err := buildDSN(driver, target)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if isSQLite(driver) {
		// una sola conexión: evita "database is locked" entre transacciones
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(2 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	d := &DB{db: db, driver: driver}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func buildDSN(driver, target string) (string, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDir(target); err != nil {
			return "", err
		}
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", target), nil
	case DriverSQLite3:
		if err := ensureDir(target); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", target), nil
	case DriverPgx:
		if !strings.HasPrefix(target, "postgres://") && !strings.HasPrefix(target, "postgresql://") {
			return "", fmt.Errorf("pgx driver needs a postgres:// DSN, got %q", target)
		}
		return target, nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", driver)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func isSQLite(driver string) bool { return driver == DriverSQLite || driver == DriverSQLite3 }

func (d *DB) Driver() string { return d.driver }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) PingContext(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, rebind(d.driver, query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, rebind(d.driver, query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, rebind(d.driver, query), args...)
}

// Tx is a transaction-scoped Querier.
type Tx struct {
	tx     *sql.Tx
	driver string
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.driver, query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebind(t.driver, query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.driver, query), args...)
}

// LockRow holds a row lock on table.id until the transaction ends. SQLite
// transactions already run one at a time over the single connection, so there
// it only checks the row exists.
func (t *Tx) LockRow(ctx context.Context, table string, id int64) error {
	var got int64
	err := t.QueryRowContext(ctx, lockQuery(t.driver, table), id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return err
}

func lockQuery(driver, table string) string {
	q := "SELECT id FROM " + table + " WHERE id=?"
	if isSQLite(driver) {
		return q
	}
	return q + " FOR UPDATE"
}

// InTx runs fn inside one transaction. Any error from fn rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx, driver: d.driver}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for postgres. Quoted literals are left alone.
func rebind(driver, query string) string {
	if driver != DriverPgx || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NowUnix is the timestamp format stored in every table.
func NowUnix() int64 { return time.Now().Unix() }
