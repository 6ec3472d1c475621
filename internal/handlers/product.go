package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
)

// NewProduct inserts a batch of products. Product rows carry no producer
// key, so redelivery is deduped on the batch: the producer-supplied batchId
// when present, a content hash of the batch otherwise.
func (s *Set) NewProduct(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.NewProduct()
	if err != nil {
		return router.Skipped, err
	}

	key := p.BatchID
	if key == "" {
		key = contentKey(p.Products)
	}
	if s.keys != nil {
		seen, err := s.keys.Seen(ctx, key)
		if err != nil {
			return router.Skipped, fmt.Errorf("check product batch %s: %w", key, err)
		}
		if seen {
			s.log.Info("product batch already applied", "batch", key)
			return router.Skipped, nil
		}
	}

	products := make([]domain.Product, 0, len(p.Products))
	for _, in := range p.Products {
		category := in.Category
		if category == "" {
			category = domain.CategoryOther
		}
		products = append(products, domain.Product{
			ID:        uuid.NewString(),
			Name:      in.Name,
			CostPrice: in.CostPrice,
			UnitPrice: in.UnitPrice,
			Category:  category,
			Image:     in.Image,
		})
	}
	if err := s.store.InsertProducts(ctx, products); err != nil {
		return router.Skipped, fmt.Errorf("insert products: %w", err)
	}
	if s.keys != nil {
		// Marked after the insert: a crash in between re-inserts the batch
		// on redelivery, which at-least-once delivery already permits.
		if err := s.keys.Mark(ctx, key); err != nil {
			s.log.Warn("mark product batch failed", "batch", key, "error", err)
		}
	}
	s.log.Info("products created", "count", len(products), "batch", key)
	return router.Applied, nil
}

// DeleteProduct removes a product by id. Deleting an absent product is a
// no-op.
func (s *Set) DeleteProduct(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.DeleteProduct()
	if err != nil {
		return router.Skipped, err
	}
	deleted, err := s.store.DeleteProduct(ctx, p.ProductID)
	if err != nil {
		return router.Skipped, fmt.Errorf("delete product %s: %w", p.ProductID, err)
	}
	if !deleted {
		return router.Skipped, nil
	}
	return router.Applied, nil
}

func contentKey(products []messaging.ProductPayload) string {
	data, _ := json.Marshal(products)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
