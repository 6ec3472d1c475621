// Package handlers applies domain events to the store. Delivery is
// at-least-once, so every handler tolerates being invoked more than once for
// the same logical event.
package handlers

import (
	"context"
	"log/slog"

	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage"
)

// BatchKeys records applied batch dedup keys for events that carry no
// natural correlation key of their own (new_product).
type BatchKeys interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Set holds one handler per event kind over a shared store.
type Set struct {
	store storage.Store
	keys  BatchKeys
	log   *slog.Logger
}

// New returns a handler set over store. keys may be nil, in which case
// new_product batches are applied without dedup.
func New(store storage.Store, keys BatchKeys, log *slog.Logger) *Set {
	return &Set{store: store, keys: keys, log: log}
}

// Register wires every kind into r. Each kind gets exactly one handler.
func (s *Set) Register(r *router.Router) error {
	routes := map[messaging.Kind]router.HandlerFunc{
		messaging.KindNewUser:           s.NewUser,
		messaging.KindNewOrder:          s.NewOrder,
		messaging.KindNewProduct:        s.NewProduct,
		messaging.KindOrderStatusUpdate: s.OrderStatusUpdate,
		messaging.KindDeleteOrder:       s.DeleteOrder,
		messaging.KindDeleteProduct:     s.DeleteProduct,
		messaging.KindDeleteUser:        s.DeleteUser,
	}
	for kind, fn := range routes {
		if err := r.Register(kind, fn); err != nil {
			return err
		}
	}
	return nil
}
