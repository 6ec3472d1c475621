// Package domain defines the persisted entities of the dashboard pipeline.
package domain

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ProductCategory classifies a product.
type ProductCategory string

const (
	CategoryClothing    ProductCategory = "clothing"
	CategoryElectronics ProductCategory = "electronics"
	CategoryPhones      ProductCategory = "phones"
	CategoryFootwear    ProductCategory = "footwear"
	CategoryOther       ProductCategory = "other"
)

// Valid reports whether c is one of the known product categories.
func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryClothing, CategoryElectronics, CategoryPhones, CategoryFootwear, CategoryOther:
		return true
	}
	return false
}

// User is a customer record. Users are created by new_user events or
// synthesized by the new_order handler when no owner can be resolved.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is keyed by the producer-supplied OrderID correlation key. EventTime
// is the business timestamp from the envelope, distinct from CreatedAt which
// is the store write time.
type Order struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Status    OrderStatus `json:"status"`
	Amount    float64     `json:"amount"`
	EventTime time.Time   `json:"timestamp"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderItem is a line of an order. It references the order by the external
// OrderID correlation key, never by a store-internal identifier, so linkage
// stays stable across redeliveries.
type OrderItem struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"orderId"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
	CostPrice float64   `json:"costPrice"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is a catalog record. Producers supply no natural key, so the store
// assigns the ID and the new_product handler dedups whole batches instead.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CostPrice float64         `json:"costPrice"`
	UnitPrice float64         `json:"unitPrice"`
	Category  ProductCategory `json:"type"`
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"createdAt"`
}
