package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/handlers"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage"
	"github.com/shoppulse/dashsvc/internal/storage/memory"
)

type fakeFetcher struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	idx       int
	committed []kafka.Message
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.idx < len(f.msgs) {
		msg := f.msgs[f.idx]
		f.idx++
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeAttempts struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeAttempts() *fakeAttempts { return &fakeAttempts{counts: make(map[string]int64)} }

func (f *fakeAttempts) Bump(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id]++
	return f.counts[id], nil
}

func (f *fakeAttempts) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, id)
	return nil
}

type fakeDLQ struct {
	mu     sync.Mutex
	values [][]byte
}

func (f *fakeDLQ) PublishRaw(_ context.Context, _ string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, value)
	return nil
}

func (f *fakeDLQ) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeBroadcaster) Broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func (f *fakeBroadcaster) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.payloads))
	for i, p := range f.payloads {
		out[i] = string(p)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "shop-events", Partition: 0, Offset: offset, Value: []byte(value)}
}

type fixture struct {
	store   *memory.Store
	fetcher *fakeFetcher
	dlq     *fakeDLQ
	bc      *fakeBroadcaster
	cancel  context.CancelFunc
	done    chan struct{}
}

// startConsumer runs a consumer over msgs with the real router and handlers
// and waits for wantCommits acknowledgments.
func startConsumer(t *testing.T, cfg Config, msgs []kafka.Message, wantCommits int) *fixture {
	t.Helper()
	store := memory.New()
	log := testLogger()
	r := router.New(log)
	require.NoError(t, handlers.New(store, nil, log).Register(r))
	return startConsumerWithRouter(t, cfg, r, store, msgs, wantCommits)
}

func startConsumerWithRouter(t *testing.T, cfg Config, r *router.Router, store *memory.Store, msgs []kafka.Message, wantCommits int) *fixture {
	t.Helper()
	f := &fixture{
		store:   store,
		fetcher: &fakeFetcher{msgs: msgs},
		dlq:     &fakeDLQ{},
		bc:      &fakeBroadcaster{},
		done:    make(chan struct{}),
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	cons := New(cfg, f.fetcher, r, f.bc, newFakeAttempts(), f.dlq, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.done)
		_ = cons.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not stop")
		}
	})

	require.Eventually(t, func() bool {
		return f.fetcher.committedCount() >= wantCommits
	}, 5*time.Second, 5*time.Millisecond, "expected %d commits", wantCommits)
	return f
}

const orderO42 = `{"type":"new_order","orderId":"o-42","amount":20,"status":"new",` +
	`"items":[{"name":"X","quantity":2,"unitPrice":10,"costPrice":5}],` +
	`"timestamp":"2026-08-01T12:00:00Z"}`

func TestRunAppliesOrderAndBroadcastsVerbatim(t *testing.T) {
	f := startConsumer(t, Config{}, []kafka.Message{msg(0, orderO42)}, 1)
	ctx := context.Background()

	order, err := f.store.GetOrder(ctx, "o-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, order.Status)
	assert.Equal(t, 20.0, order.Amount)

	users, _, err := f.store.ListUsers(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, users, 1)

	items, _, err := f.store.ListOrderItems(ctx, "o-42", storage.Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20.0, items[0].Total)

	require.Equal(t, []string{orderO42}, f.bc.all())
	assert.Equal(t, 0, f.dlq.count())
}

func TestRunSerializesStatusUpdatesPerKey(t *testing.T) {
	statusUpdate := func(status string) string {
		return `{"type":"order_status_update","orderId":"o-42","status":"` + status + `"}`
	}
	msgs := []kafka.Message{
		msg(0, orderO42),
		msg(1, statusUpdate("processing")),
		msg(2, statusUpdate("shipped")),
		msg(3, statusUpdate("delivered")),
	}
	f := startConsumer(t, Config{Lanes: 4, Prefetch: 16}, msgs, 4)

	order, err := f.store.GetOrder(context.Background(), "o-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, order.Status)
	assert.Len(t, f.bc.all(), 4)
}

func TestRunRedeliveredOrderAppliesOnce(t *testing.T) {
	msgs := []kafka.Message{msg(0, orderO42), msg(1, orderO42)}
	f := startConsumer(t, Config{}, msgs, 2)
	ctx := context.Background()

	orders, _, err := f.store.ListOrders(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	items, _, err := f.store.ListOrderItems(ctx, "o-42", storage.Page{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// The duplicate is a skip: acknowledged, not broadcast.
	assert.Equal(t, []string{orderO42}, f.bc.all())
}

func TestRunCommitsPoisonWithoutBroadcast(t *testing.T) {
	f := startConsumer(t, Config{}, []kafka.Message{msg(0, "not json at all")}, 1)

	assert.Empty(t, f.bc.all())
	assert.Equal(t, 0, f.dlq.count())
	orders, _, err := f.store.ListOrders(context.Background(), storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRunAcksUnknownKind(t *testing.T) {
	f := startConsumer(t, Config{}, []kafka.Message{msg(0, `{"type":"mystery_event","orderId":"o-1"}`)}, 1)

	assert.Empty(t, f.bc.all())
	assert.Equal(t, 0, f.dlq.count())
	orders, _, err := f.store.ListOrders(context.Background(), storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRunDeadLettersInvalidPayload(t *testing.T) {
	raw := `{"type":"new_order","items":[{"name":"X","quantity":1}]}`
	f := startConsumer(t, Config{}, []kafka.Message{msg(0, raw)}, 1)

	assert.Equal(t, 1, f.dlq.count())
	assert.Empty(t, f.bc.all())
}

func TestRunDeadLettersAfterAttemptBudget(t *testing.T) {
	log := testLogger()
	r := router.New(log)
	require.NoError(t, r.Register(messaging.KindNewUser,
		func(context.Context, *messaging.Envelope) (router.Outcome, error) {
			return router.Skipped, errors.New("store down")
		}))

	raw := `{"type":"new_user","email":"a@b.c"}`
	cfg := Config{MaxAttempts: 2, RetryDelay: time.Millisecond}
	f := startConsumerWithRouter(t, cfg, r, memory.New(), []kafka.Message{msg(0, raw)}, 1)

	assert.Equal(t, 1, f.dlq.count())
	assert.Empty(t, f.bc.all())
}

func TestRunTimesOutStuckHandler(t *testing.T) {
	log := testLogger()
	r := router.New(log)
	require.NoError(t, r.Register(messaging.KindNewUser,
		func(ctx context.Context, _ *messaging.Envelope) (router.Outcome, error) {
			<-ctx.Done()
			return router.Skipped, ctx.Err()
		}))

	raw := `{"type":"new_user","email":"a@b.c"}`
	cfg := Config{MaxAttempts: 1, HandlerTimeout: 10 * time.Millisecond, RetryDelay: time.Millisecond}
	f := startConsumerWithRouter(t, cfg, r, memory.New(), []kafka.Message{msg(0, raw)}, 1)

	// Timeout is a handler failure; a budget of one sends it straight to
	// the dead-letter sink.
	assert.Equal(t, 1, f.dlq.count())
}

func TestRunProductBroadcastDisabledByDefault(t *testing.T) {
	raw := `{"type":"new_product","products":[{"name":"shirt","type":"clothing","unitPrice":30,"costPrice":12}]}`
	f := startConsumer(t, Config{}, []kafka.Message{msg(0, raw)}, 1)

	products, _, err := f.store.ListProducts(context.Background(), storage.Page{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Empty(t, f.bc.all())
}

func TestRunProductBroadcastOptIn(t *testing.T) {
	raw := `{"type":"new_product","products":[{"name":"shirt","type":"clothing","unitPrice":30,"costPrice":12}]}`
	f := startConsumer(t, Config{BroadcastProducts: true}, []kafka.Message{msg(0, raw)}, 1)

	assert.Equal(t, []string{raw}, f.bc.all())
}

func TestLaneForIsStablePerKey(t *testing.T) {
	c := New(Config{Lanes: 8}, nil, nil, nil, nil, nil, testLogger())

	env, err := messaging.DecodeEnvelope([]byte(`{"type":"order_status_update","orderId":"o-42","status":"shipped"}`))
	require.NoError(t, err)

	lane := c.laneFor(msg(0, ""), env)
	for off := int64(1); off < 10; off++ {
		assert.Equal(t, lane, c.laneFor(msg(off, ""), env))
	}
}
