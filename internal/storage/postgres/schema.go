package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         text PRIMARY KEY,
	name       text NOT NULL,
	email      text NOT NULL DEFAULT '',
	phone      text NOT NULL DEFAULT '',
	address    text NOT NULL DEFAULT '',
	avatar     text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
);

-- No foreign key from orders to users: deleting a user must leave the
-- user's orders in place, removable only by delete_order events.
CREATE TABLE IF NOT EXISTS orders (
	order_id   text PRIMARY KEY,
	user_id    text NOT NULL,
	status     text NOT NULL DEFAULT 'new',
	amount     double precision NOT NULL DEFAULT 0,
	event_time timestamptz,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id         bigserial PRIMARY KEY,
	order_id   text NOT NULL,
	name       text NOT NULL,
	image      text NOT NULL DEFAULT '',
	quantity   integer NOT NULL,
	unit_price double precision NOT NULL,
	cost_price double precision NOT NULL,
	total      double precision NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items (order_id);

CREATE TABLE IF NOT EXISTS products (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	cost_price double precision NOT NULL DEFAULT 0,
	unit_price double precision NOT NULL DEFAULT 0,
	category   text NOT NULL DEFAULT 'other',
	image      text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
