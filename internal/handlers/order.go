package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage"
)

// NewOrder resolves an owning user, then creates the order and its items in
// one atomic store write keyed by the external orderId. Redelivery of an
// already-applied orderId is a skip, never a duplicate.
func (s *Set) NewOrder(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.NewOrder()
	if err != nil {
		return router.Skipped, err
	}

	user, err := s.resolveOrderUser(ctx, p.CustomerName)
	if err != nil {
		return router.Skipped, fmt.Errorf("resolve user for order %s: %w", p.OrderID, err)
	}

	status := p.Status
	if status == "" {
		status = domain.StatusNew
	}
	order := &domain.Order{
		OrderID:   p.OrderID,
		UserID:    user.ID,
		Status:    status,
		Amount:    p.Amount,
		EventTime: p.Timestamp,
	}

	items := make([]domain.OrderItem, 0, len(p.Items))
	var itemSum float64
	for _, in := range p.Items {
		total := in.LineTotal()
		itemSum += total
		items = append(items, domain.OrderItem{
			OrderID:   p.OrderID,
			Name:      in.Name,
			Image:     in.Image,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			CostPrice: in.CostPrice,
			Total:     total,
		})
	}
	// The producer-supplied amount is authoritative; a mismatch with the
	// item sum is worth a warning but never a rejection.
	if p.Amount > 0 && math.Abs(p.Amount-itemSum) > 0.01 {
		s.log.Warn("order amount differs from item sum",
			"order_id", p.OrderID, "amount", p.Amount, "item_sum", itemSum)
	}

	created, err := s.store.CreateOrderWithItems(ctx, order, items)
	if err != nil {
		return router.Skipped, fmt.Errorf("create order %s: %w", p.OrderID, err)
	}
	if !created {
		s.log.Info("order already applied", "order_id", p.OrderID)
		return router.Skipped, nil
	}
	s.log.Info("order created", "order_id", p.OrderID, "items", len(items), "user_id", user.ID)
	return router.Applied, nil
}

// resolveOrderUser finds or synthesizes the user an order attaches to.
// A named customer is matched or created by name so redelivery resolves to
// the same user. With no name, an existing user is sampled at random, and
// only an empty store synthesizes a guest: orders always end up attached to
// some user.
func (s *Set) resolveOrderUser(ctx context.Context, customerName string) (*domain.User, error) {
	if customerName != "" {
		u, err := s.store.FindUserByName(ctx, customerName)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return s.synthesizeUser(ctx, customerName)
	}

	u, err := s.store.RandomUser(ctx)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return s.synthesizeUser(ctx, "")
}

func (s *Set) synthesizeUser(ctx context.Context, name string) (*domain.User, error) {
	id := uuid.NewString()
	if name == "" {
		name = guestName(id)
	}
	u := &domain.User{
		ID:     id,
		Name:   name,
		Email:  guestName(id) + "@example.com",
		Avatar: "https://avatars.example.com/" + id,
	}
	if _, err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user synthesized for order", "user_id", u.ID, "name", u.Name)
	return u, nil
}

// OrderStatusUpdate overwrites the status of an order. The overwrite is
// naturally idempotent; an unknown orderId is a skip, never an error.
func (s *Set) OrderStatusUpdate(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.OrderStatusUpdate()
	if err != nil {
		return router.Skipped, err
	}
	found, err := s.store.UpdateOrderStatus(ctx, p.OrderID, p.Status)
	if err != nil {
		return router.Skipped, fmt.Errorf("update order %s: %w", p.OrderID, err)
	}
	if !found {
		s.log.Info("status update for unknown order", "order_id", p.OrderID)
		return router.Skipped, nil
	}
	s.log.Info("order status updated", "order_id", p.OrderID, "status", string(p.Status))
	return router.Applied, nil
}

// DeleteOrder removes the order's items and then the order. Repeating the
// delete is a no-op.
func (s *Set) DeleteOrder(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.DeleteOrder()
	if err != nil {
		return router.Skipped, err
	}
	deleted, err := s.store.DeleteOrder(ctx, p.OrderID)
	if err != nil {
		return router.Skipped, fmt.Errorf("delete order %s: %w", p.OrderID, err)
	}
	if !deleted {
		return router.Skipped, nil
	}
	s.log.Info("order deleted", "order_id", p.OrderID)
	return router.Applied, nil
}
