package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage"
	"github.com/shoppulse/dashsvc/internal/storage/memory"
)

// fakeKeys is an in-memory BatchKeys.
type fakeKeys struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeKeys() *fakeKeys { return &fakeKeys{seen: make(map[string]bool)} }

func (f *fakeKeys) Seen(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[key], nil
}

func (f *fakeKeys) Mark(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[key] = true
	return nil
}

func testSet(t *testing.T) (*Set, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, newFakeKeys(), log), store
}

func envelope(t *testing.T, raw string) *messaging.Envelope {
	t.Helper()
	env, err := messaging.DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	return env
}

const orderABC = `{
	"type":"new_order","orderId":"abc-1","amount":20,"status":"new",
	"items":[{"name":"X","quantity":2,"unitPrice":10,"costPrice":5}],
	"timestamp":"2026-08-01T12:00:00Z"}`

func TestNewOrderRedeliveryCreatesExactlyOne(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	outcome, err := set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	// Identical redelivery: already applied, no duplication.
	outcome, err = set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	orders, _, err := store.ListOrders(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "abc-1", orders[0].OrderID)

	items, _, err := store.ListOrderItems(ctx, "abc-1", storage.Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20.0, items[0].Total)
}

func TestNewOrderSynthesizesUserWhenStoreEmpty(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	outcome, err := set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	users, _, err := store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, users, 1)

	order, err := store.GetOrder(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, order.UserID)
	assert.Equal(t, domain.StatusNew, order.Status)
	assert.Equal(t, 20.0, order.Amount)
}

func TestNewOrderReusesNamedCustomerAcrossRedeliveries(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"new_order","orderId":"o-7","customerName":"Lan Pham","amount":5,
		"items":[{"name":"Y","quantity":1,"unitPrice":5,"costPrice":2}]}`
	_, err := set.NewOrder(ctx, envelope(t, raw))
	require.NoError(t, err)

	raw2 := `{"type":"new_order","orderId":"o-8","customerName":"Lan Pham","amount":5,
		"items":[{"name":"Z","quantity":1,"unitPrice":5,"costPrice":2}]}`
	_, err = set.NewOrder(ctx, envelope(t, raw2))
	require.NoError(t, err)

	users, _, err := store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Lan Pham", users[0].Name)

	orders, _, err := store.ListOrdersByUser(ctx, users[0].ID, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestNewOrderAttachesToExistingUser(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &domain.User{ID: "u-1", Name: "Existing"})
	require.NoError(t, err)
	require.True(t, created)

	_, err = set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)

	order, err := store.GetOrder(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", order.UserID)

	users, _, err := store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestOrderStatusUpdateUnknownOrderSkips(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"order_status_update","orderId":"ghost","status":"shipped"}`
	outcome, err := set.OrderStatusUpdate(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	orders, _, err := store.ListOrders(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderStatusUpdateOverwrites(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	_, err := set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)

	raw := `{"type":"order_status_update","orderId":"abc-1","status":"delivered"}`
	outcome, err := set.OrderStatusUpdate(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	// Overwrite is naturally idempotent.
	outcome, err = set.OrderStatusUpdate(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	order, err := store.GetOrder(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, order.Status)
}

func TestDeleteOrderRemovesItemsAndIsIdempotent(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	_, err := set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)

	raw := `{"type":"delete_order","orderId":"abc-1"}`
	outcome, err := set.DeleteOrder(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	items, _, err := store.ListOrderItems(ctx, "abc-1", storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = store.GetOrder(ctx, "abc-1")
	require.Error(t, err)

	// Second delete is a no-op.
	outcome, err = set.DeleteOrder(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)
}

func TestNewUserDedupsByName(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"new_user","name":"Minh","email":"minh@example.com"}`
	outcome, err := set.NewUser(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	outcome, err = set.NewUser(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	users, _, err := store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestNewUserDedupsByProducerID(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"new_user","userId":"u-42","name":"Minh","email":"minh@example.com"}`
	outcome, err := set.NewUser(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	outcome, err = set.NewUser(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	users, _, err := store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestNewUserValidationFailure(t *testing.T) {
	set, _ := testSet(t)

	raw := `{"type":"new_user","name":"NoEmail"}`
	_, err := set.NewUser(context.Background(), envelope(t, raw))
	require.ErrorIs(t, err, messaging.ErrValidation)
}

func TestNewProductBatchDedup(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"new_product","batchId":"b-1","products":[
		{"name":"shirt","type":"clothing","unitPrice":30,"costPrice":12},
		{"name":"phone","type":"phones","unitPrice":500,"costPrice":350}]}`
	outcome, err := set.NewProduct(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	// Redelivery of the same batch id inserts nothing.
	outcome, err = set.NewProduct(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	products, _, err := store.ListProducts(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestNewProductContentKeyDedup(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	raw := `{"type":"new_product","products":[{"name":"boots","type":"footwear","unitPrice":80,"costPrice":40}]}`
	_, err := set.NewProduct(ctx, envelope(t, raw))
	require.NoError(t, err)

	outcome, err := set.NewProduct(ctx, envelope(t, raw))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	products, _, err := store.ListProducts(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestDeleteProductAndUserAreIdempotent(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &domain.User{ID: "u-9", Name: "Chi"})
	require.NoError(t, err)
	require.True(t, created)

	outcome, err := set.DeleteUser(ctx, envelope(t, `{"type":"delete_user","userId":"u-9"}`))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	outcome, err = set.DeleteUser(ctx, envelope(t, `{"type":"delete_user","userId":"u-9"}`))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)

	outcome, err = set.DeleteProduct(ctx, envelope(t, `{"type":"delete_product","productId":"p-1"}`))
	require.NoError(t, err)
	assert.Equal(t, router.Skipped, outcome)
}

func TestDeleteUserKeepsOrders(t *testing.T) {
	set, store := testSet(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &domain.User{ID: "u-1", Name: "Existing"})
	require.NoError(t, err)
	require.True(t, created)

	_, err = set.NewOrder(ctx, envelope(t, orderABC))
	require.NoError(t, err)

	outcome, err := set.DeleteUser(ctx, envelope(t, `{"type":"delete_user","userId":"u-1"}`))
	require.NoError(t, err)
	assert.Equal(t, router.Applied, outcome)

	// Orders outlive their user; only a delete_order removes them.
	order, err := store.GetOrder(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", order.UserID)

	items, _, err := store.ListOrderItems(ctx, "abc-1", storage.Page{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// The enriched listing reports the vanished owner as absent.
	orders, _, err := store.ListOrders(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Nil(t, orders[0].User)
}

func TestRegisterCoversAllKinds(t *testing.T) {
	set, _ := testSet(t)
	r := router.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, set.Register(r))

	// Registering again must collide on every kind.
	require.Error(t, set.Register(r))
}
