package store

import "context"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users(
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  username      TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role          TEXT NOT NULL,
  created_unix  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions(
  token        TEXT PRIMARY KEY,
  user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS books(
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  title         TEXT NOT NULL,
  author        TEXT NOT NULL,
  price_cents   INTEGER NOT NULL CHECK (price_cents >= 0),
  stock_qty     INTEGER NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
  reorder_level INTEGER NOT NULL DEFAULT 0,
  active        BOOLEAN NOT NULL DEFAULT TRUE,
  created_unix  INTEGER NOT NULL,
  updated_unix  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_receipts(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  book_id      INTEGER NOT NULL REFERENCES books(id),
  qty          INTEGER NOT NULL CHECK (qty > 0),
  note         TEXT NOT NULL DEFAULT '',
  received_by  INTEGER NOT NULL,
  created_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS customers(
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  name               TEXT NOT NULL,
  email              TEXT NOT NULL DEFAULT '',
  credit_limit_cents INTEGER NOT NULL DEFAULT 0,
  user_id            INTEGER UNIQUE REFERENCES users(id),
  salesman_id        INTEGER REFERENCES users(id),
  created_unix       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS discount_rules(
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  name            TEXT NOT NULL,
  percentage      TEXT NOT NULL,
  min_order_cents INTEGER NOT NULL DEFAULT 0,
  valid_from_unix INTEGER,
  valid_to_unix   INTEGER,
  active          BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS orders(
  id                  INTEGER PRIMARY KEY AUTOINCREMENT,
  order_number        TEXT NOT NULL UNIQUE,
  customer_id         INTEGER NOT NULL REFERENCES customers(id),
  created_by          INTEGER NOT NULL REFERENCES users(id),
  status              TEXT NOT NULL,
  subtotal_cents      INTEGER NOT NULL,
  discount_percentage TEXT NOT NULL,
  discount_cents      INTEGER NOT NULL,
  tax_cents           INTEGER NOT NULL,
  total_cents         INTEGER NOT NULL,
  notes               TEXT NOT NULL DEFAULT '',
  created_unix        INTEGER NOT NULL,
  updated_unix        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items(
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id         INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  book_id          INTEGER NOT NULL REFERENCES books(id),
  title            TEXT NOT NULL,
  qty              INTEGER NOT NULL CHECK (qty > 0),
  unit_price_cents INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS payments(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  customer_id  INTEGER NOT NULL REFERENCES customers(id),
  order_id     INTEGER REFERENCES orders(id),
  amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
  method       TEXT NOT NULL DEFAULT '',
  recorded_by  INTEGER NOT NULL,
  created_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS carts(
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL UNIQUE REFERENCES users(id)
);
CREATE TABLE IF NOT EXISTS cart_items(
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  cart_id INTEGER NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  book_id INTEGER NOT NULL REFERENCES books(id),
  qty     INTEGER NOT NULL CHECK (qty > 0),
  UNIQUE(cart_id, book_id)
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments(customer_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users(
  id            BIGSERIAL PRIMARY KEY,
  username      TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role          TEXT NOT NULL,
  created_unix  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions(
  token        TEXT PRIMARY KEY,
  user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_unix BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS books(
  id            BIGSERIAL PRIMARY KEY,
  title         TEXT NOT NULL,
  author        TEXT NOT NULL,
  price_cents   BIGINT NOT NULL CHECK (price_cents >= 0),
  stock_qty     INTEGER NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
  reorder_level INTEGER NOT NULL DEFAULT 0,
  active        BOOLEAN NOT NULL DEFAULT TRUE,
  created_unix  BIGINT NOT NULL,
  updated_unix  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_receipts(
  id           BIGSERIAL PRIMARY KEY,
  book_id      BIGINT NOT NULL REFERENCES books(id),
  qty          INTEGER NOT NULL CHECK (qty > 0),
  note         TEXT NOT NULL DEFAULT '',
  received_by  BIGINT NOT NULL,
  created_unix BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS customers(
  id                 BIGSERIAL PRIMARY KEY,
  name               TEXT NOT NULL,
  email              TEXT NOT NULL DEFAULT '',
  credit_limit_cents BIGINT NOT NULL DEFAULT 0,
  user_id            BIGINT UNIQUE REFERENCES users(id),
  salesman_id        BIGINT REFERENCES users(id),
  created_unix       BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS discount_rules(
  id              BIGSERIAL PRIMARY KEY,
  name            TEXT NOT NULL,
  percentage      TEXT NOT NULL,
  min_order_cents BIGINT NOT NULL DEFAULT 0,
  valid_from_unix BIGINT,
  valid_to_unix   BIGINT,
  active          BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS orders(
  id                  BIGSERIAL PRIMARY KEY,
  order_number        TEXT NOT NULL UNIQUE,
  customer_id         BIGINT NOT NULL REFERENCES customers(id),
  created_by          BIGINT NOT NULL REFERENCES users(id),
  status              TEXT NOT NULL,
  subtotal_cents      BIGINT NOT NULL,
  discount_percentage TEXT NOT NULL,
  discount_cents      BIGINT NOT NULL,
  tax_cents           BIGINT NOT NULL,
  total_cents         BIGINT NOT NULL,
  notes               TEXT NOT NULL DEFAULT '',
  created_unix        BIGINT NOT NULL,
  updated_unix        BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items(
  id               BIGSERIAL PRIMARY KEY,
  order_id         BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  book_id          BIGINT NOT NULL REFERENCES books(id),
  title            TEXT NOT NULL,
  qty              INTEGER NOT NULL CHECK (qty > 0),
  unit_price_cents BIGINT NOT NULL,
  line_total_cents BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS payments(
  id           BIGSERIAL PRIMARY KEY,
  customer_id  BIGINT NOT NULL REFERENCES customers(id),
  order_id     BIGINT REFERENCES orders(id),
  amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
  method       TEXT NOT NULL DEFAULT '',
  recorded_by  BIGINT NOT NULL,
  created_unix BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS carts(
  id      BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL UNIQUE REFERENCES users(id)
);
CREATE TABLE IF NOT EXISTS cart_items(
  id      BIGSERIAL PRIMARY KEY,
  cart_id BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  book_id BIGINT NOT NULL REFERENCES books(id),
  qty     INTEGER NOT NULL CHECK (qty > 0),
  UNIQUE(cart_id, book_id)
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments(customer_id);
`

func (d *DB) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if d.driver == DriverPgx {
		schema = postgresSchema
	}
	_, err := d.db.ExecContext(ctx, schema)
	return err
}
