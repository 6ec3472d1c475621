// Package postgres implements the storage.Store contract on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a pgx-backed store.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, address, avatar, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Name, u.Email, u.Phone, u.Address, u.Avatar, u.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const userColumns = `id, name, email, phone, address, avatar, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.Avatar, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByName(ctx context.Context, name string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1 LIMIT 1`, name)
	return scanUser(row)
}

func (s *Store) RandomUser(ctx context.Context) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users ORDER BY random() LIMIT 1`)
	return scanUser(row)
}

func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListUsers(ctx context.Context, p storage.Page) ([]domain.User, int, error) {
	total, err := s.count(ctx, `SELECT count(*) FROM users`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`+pageClause(p))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// pageClause renders p as LIMIT/OFFSET. The values are ints, never caller
// strings, so direct formatting is safe.
func pageClause(p storage.Page) string {
	if p.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

func (s *Store) CreateOrderWithItems(ctx context.Context, o *domain.Order, items []domain.OrderItem) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (order_id, user_id, status, amount, event_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (order_id) DO NOTHING
	`, o.OrderID, o.UserID, o.Status, o.Amount, o.EventTime, now)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Already applied on a previous delivery.
		return false, tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, name, image, quantity, unit_price, cost_price, total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.OrderID, item.Name, item.Image, item.Quantity, item.UnitPrice, item.CostPrice, item.Total, now)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE order_id = $1
	`, orderID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Items first so an interrupted delete never leaves dangling items.
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, tx.Commit(ctx)
}

const orderColumns = `order_id, user_id, status, amount, event_time, created_at, updated_at`

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID).
		Scan(&o.OrderID, &o.UserID, &o.Status, &o.Amount, &o.EventTime, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders pages through orders newest first, each carrying its owning
// user's name, email and avatar, or a nil user when the owner is gone.
func (s *Store) ListOrders(ctx context.Context, p storage.Page) ([]storage.OrderWithUser, int, error) {
	total, err := s.count(ctx, `SELECT count(*) FROM orders`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.order_id, o.user_id, o.status, o.amount, o.event_time, o.created_at, o.updated_at,
		       u.id IS NOT NULL,
		       coalesce(u.name, ''), coalesce(u.email, ''), coalesce(u.avatar, '')
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`+pageClause(p))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []storage.OrderWithUser
	for rows.Next() {
		var o storage.OrderWithUser
		var hasUser bool
		var u storage.OrderUser
		if err := rows.Scan(&o.OrderID, &o.UserID, &o.Status, &o.Amount, &o.EventTime, &o.CreatedAt, &o.UpdatedAt,
			&hasUser, &u.Name, &u.Email, &u.Avatar); err != nil {
			return nil, 0, err
		}
		if hasUser {
			o.User = &u
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, p storage.Page) ([]domain.Order, int, error) {
	total, err := s.count(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`+pageClause(p), userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.OrderID, &o.UserID, &o.Status, &o.Amount, &o.EventTime, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string, p storage.Page) ([]domain.OrderItem, int, error) {
	total, err := s.count(ctx, `SELECT count(*) FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, name, image, quantity, unit_price, cost_price, total, created_at
		FROM order_items WHERE order_id = $1 ORDER BY id
	`+pageClause(p), orderID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Image, &it.Quantity, &it.UnitPrice, &it.CostPrice, &it.Total, &it.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (s *Store) InsertProducts(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, p := range products {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		batch.Queue(`
			INSERT INTO products (id, name, cost_price, unit_price, category, image, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.CostPrice, p.UnitPrice, p.Category, p.Image, createdAt)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListProducts(ctx context.Context, p storage.Page) ([]domain.Product, int, error) {
	total, err := s.count(ctx, `SELECT count(*) FROM products`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, cost_price, unit_price, category, image, created_at
		FROM products ORDER BY created_at DESC
	`+pageClause(p))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var prod domain.Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.CostPrice, &prod.UnitPrice, &prod.Category, &prod.Image, &prod.CreatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, prod)
	}
	return products, total, rows.Err()
}

func (s *Store) SalesOverview(ctx context.Context, from, to time.Time) ([]storage.SalesPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', coalesce(event_time, created_at)) AS day,
		       count(*), coalesce(sum(amount), 0)
		FROM orders
		WHERE coalesce(event_time, created_at) >= $1
		  AND coalesce(event_time, created_at) < $2
		GROUP BY day ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []storage.SalesPoint
	for rows.Next() {
		var p storage.SalesPoint
		if err := rows.Scan(&p.Day, &p.Orders, &p.Revenue); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) OrderStatusCounts(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int)
	for rows.Next() {
		var status domain.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) ProductCategoryCounts(ctx context.Context) (map[domain.ProductCategory]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, count(*) FROM products GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ProductCategory]int)
	for rows.Next() {
		var category domain.ProductCategory
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}
