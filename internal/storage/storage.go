// Package storage defines the persistent store contract for the pipeline.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shoppulse/dashsvc/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// SalesPoint is one day of aggregated order revenue.
type SalesPoint struct {
	Day     time.Time `json:"day"`
	Orders  int       `json:"orders"`
	Revenue float64   `json:"revenue"`
}

// Page bounds a list query. A zero Limit means unbounded.
type Page struct {
	Limit  int
	Offset int
}

// OrderUser is the slice of the owning user embedded in order listings.
type OrderUser struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// OrderWithUser is an order enriched with its owner. User is nil when the
// owner has since been deleted.
type OrderWithUser struct {
	domain.Order
	User *OrderUser `json:"user"`
}

// Store is the persistence contract the handlers and the read API run
// against. Implementations must make CreateOrderWithItems atomic: either the
// order row and all item rows land, or none do, so a redelivered new_order
// never half-applies.
type Store interface {
	// CreateUser inserts u, assigning CreatedAt. It reports false without
	// error when a user with the same id already exists.
	CreateUser(ctx context.Context, u *domain.User) (bool, error)
	FindUserByName(ctx context.Context, name string) (*domain.User, error)
	// RandomUser samples one existing user, or ErrNotFound when the store
	// holds none.
	RandomUser(ctx context.Context) (*domain.User, error)
	// DeleteUser removes the user row only; the user's orders stay in place
	// and are removed solely by delete_order events.
	DeleteUser(ctx context.Context, id string) (bool, error)
	// ListUsers returns one page of users plus the total count.
	ListUsers(ctx context.Context, p Page) ([]domain.User, int, error)

	// CreateOrderWithItems inserts the order and its items in one atomic
	// write. It reports false without error when an order with the same
	// orderId already exists; no items are inserted in that case.
	CreateOrderWithItems(ctx context.Context, o *domain.Order, items []domain.OrderItem) (bool, error)
	// UpdateOrderStatus overwrites the status of the order with the given
	// correlation key. It reports false without error when no such order
	// exists.
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error)
	// DeleteOrder removes the order's items and then the order itself. It
	// reports false without error when no such order exists.
	DeleteOrder(ctx context.Context, orderID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	// ListOrders returns one page of orders, each enriched with its owning
	// user, plus the total count.
	ListOrders(ctx context.Context, p Page) ([]OrderWithUser, int, error)
	ListOrdersByUser(ctx context.Context, userID string, p Page) ([]domain.Order, int, error)
	ListOrderItems(ctx context.Context, orderID string, p Page) ([]domain.OrderItem, int, error)

	InsertProducts(ctx context.Context, products []domain.Product) error
	DeleteProduct(ctx context.Context, id string) (bool, error)
	ListProducts(ctx context.Context, p Page) ([]domain.Product, int, error)

	SalesOverview(ctx context.Context, from, to time.Time) ([]SalesPoint, error)
	OrderStatusCounts(ctx context.Context) (map[domain.OrderStatus]int, error)
	ProductCategoryCounts(ctx context.Context) (map[domain.ProductCategory]int, error)
}
