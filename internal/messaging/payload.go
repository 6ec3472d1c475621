package messaging

import (
	"fmt"
	"time"

	"github.com/shoppulse/dashsvc/internal/domain"
)

// NewUserPayload carries the fields of a new_user envelope. Name is optional;
// UserID is a producer-supplied identity key recommended over name dedup.
type NewUserPayload struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Avatar    string    `json:"avatar"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *NewUserPayload) Validate() error {
	if p.Email == "" {
		return fmt.Errorf("missing email: %w", ErrValidation)
	}
	return nil
}

// ItemPayload is one order line inside a new_order envelope.
type ItemPayload struct {
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	CostPrice float64 `json:"costPrice"`
	Total     float64 `json:"total"`
}

// LineTotal returns the producer-supplied total, or recomputes it from
// quantity and unit price when the producer omitted it.
func (p ItemPayload) LineTotal() float64 {
	if p.Total > 0 {
		return p.Total
	}
	return float64(p.Quantity) * p.UnitPrice
}

// NewOrderPayload carries the fields of a new_order envelope.
type NewOrderPayload struct {
	OrderID      string             `json:"orderId"`
	CustomerName string             `json:"customerName"`
	Items        []ItemPayload      `json:"items"`
	Amount       float64            `json:"amount"`
	Status       domain.OrderStatus `json:"status"`
	Timestamp    time.Time          `json:"timestamp"`
}

func (p *NewOrderPayload) Validate() error {
	if p.OrderID == "" {
		return fmt.Errorf("missing orderId: %w", ErrValidation)
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("order %s has no items: %w", p.OrderID, ErrValidation)
	}
	for i, item := range p.Items {
		if item.Name == "" {
			return fmt.Errorf("order %s item %d missing name: %w", p.OrderID, i, ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("order %s item %d has quantity %d: %w", p.OrderID, i, item.Quantity, ErrValidation)
		}
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("order %s has status %q: %w", p.OrderID, p.Status, ErrValidation)
	}
	return nil
}

// ProductPayload is one product inside a new_product envelope.
type ProductPayload struct {
	Name      string                 `json:"name"`
	UnitPrice float64                `json:"unitPrice"`
	CostPrice float64                `json:"costPrice"`
	Category  domain.ProductCategory `json:"type"`
	Image     string                 `json:"image"`
}

// NewProductPayload carries the fields of a new_product envelope. BatchID is
// the producer-supplied dedup key for the whole batch; when absent the
// handler derives a content key instead.
type NewProductPayload struct {
	BatchID  string           `json:"batchId"`
	Products []ProductPayload `json:"products"`
}

func (p *NewProductPayload) Validate() error {
	if len(p.Products) == 0 {
		return fmt.Errorf("empty product batch: %w", ErrValidation)
	}
	for i, prod := range p.Products {
		if prod.Name == "" {
			return fmt.Errorf("product %d missing name: %w", i, ErrValidation)
		}
		if prod.Category != "" && !prod.Category.Valid() {
			return fmt.Errorf("product %d has category %q: %w", i, prod.Category, ErrValidation)
		}
	}
	return nil
}

// OrderStatusUpdatePayload carries the fields of an order_status_update
// envelope.
type OrderStatusUpdatePayload struct {
	OrderID   string             `json:"orderId"`
	Status    domain.OrderStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
}

func (p *OrderStatusUpdatePayload) Validate() error {
	if p.OrderID == "" {
		return fmt.Errorf("missing orderId: %w", ErrValidation)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("order %s has status %q: %w", p.OrderID, p.Status, ErrValidation)
	}
	return nil
}

// DeleteOrderPayload carries the fields of a delete_order envelope.
type DeleteOrderPayload struct {
	OrderID string `json:"orderId"`
}

func (p *DeleteOrderPayload) Validate() error {
	if p.OrderID == "" {
		return fmt.Errorf("missing orderId: %w", ErrValidation)
	}
	return nil
}

// DeleteProductPayload carries the fields of a delete_product envelope.
type DeleteProductPayload struct {
	ProductID string `json:"productId"`
}

func (p *DeleteProductPayload) Validate() error {
	if p.ProductID == "" {
		return fmt.Errorf("missing productId: %w", ErrValidation)
	}
	return nil
}

// DeleteUserPayload carries the fields of a delete_user envelope.
type DeleteUserPayload struct {
	UserID string `json:"userId"`
}

func (p *DeleteUserPayload) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("missing userId: %w", ErrValidation)
	}
	return nil
}

// NewUser decodes and validates the envelope as a new_user payload.
func (e *Envelope) NewUser() (*NewUserPayload, error) {
	var p NewUserPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// NewOrder decodes and validates the envelope as a new_order payload.
func (e *Envelope) NewOrder() (*NewOrderPayload, error) {
	var p NewOrderPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// NewProduct decodes and validates the envelope as a new_product payload.
func (e *Envelope) NewProduct() (*NewProductPayload, error) {
	var p NewProductPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// OrderStatusUpdate decodes and validates the envelope as an
// order_status_update payload.
func (e *Envelope) OrderStatusUpdate() (*OrderStatusUpdatePayload, error) {
	var p OrderStatusUpdatePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteOrder decodes and validates the envelope as a delete_order payload.
func (e *Envelope) DeleteOrder() (*DeleteOrderPayload, error) {
	var p DeleteOrderPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct decodes and validates the envelope as a delete_product
// payload.
func (e *Envelope) DeleteProduct() (*DeleteProductPayload, error) {
	var p DeleteProductPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteUser decodes and validates the envelope as a delete_user payload.
func (e *Envelope) DeleteUser() (*DeleteUserPayload, error) {
	var p DeleteUserPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
