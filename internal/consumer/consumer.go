// Package consumer drives the queue consumption loop: fetch, route, resolve,
// acknowledge. Acknowledgment is the Kafka offset commit; a message is only
// committed once its handler outcome is known, so a crash in between is
// resolved by redelivery plus handler idempotency.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
)

// Fetcher is the slice of kafka.Reader the consumer uses. Manual commits are
// the acknowledgment mechanism: an uncommitted message is redelivered after
// a restart or rebalance.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Attempts counts deliveries per message identity so the retry budget holds
// across consumer restarts.
type Attempts interface {
	Bump(ctx context.Context, id string) (int64, error)
	Clear(ctx context.Context, id string) error
}

// Broadcaster receives the raw envelope of every applied event.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// DeadLetter is the sink for messages that exhausted their retry budget or
// can never become valid.
type DeadLetter interface {
	PublishRaw(ctx context.Context, key string, value []byte) error
}

// Config bounds the consumer's concurrency and retry behavior.
type Config struct {
	// Lanes is the number of ordered worker lanes. Envelopes sharing a
	// correlation key hash to the same lane and are handled serially.
	Lanes int
	// Prefetch bounds the number of fetched-but-uncommitted messages.
	Prefetch int
	// MaxAttempts is the delivery budget before a message is dead-lettered.
	MaxAttempts int
	// HandlerTimeout bounds one handler execution; expiry is a failure.
	HandlerTimeout time.Duration
	// RetryDelay is the pause between in-lane retries of a failed handler.
	RetryDelay time.Duration
	// BroadcastProducts enables fan-out of new_product events.
	BroadcastProducts bool
}

func (c Config) withDefaults() Config {
	if c.Lanes <= 0 {
		c.Lanes = 8
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	return c
}

// Consumer owns the queue subscription.
type Consumer struct {
	cfg      Config
	fetcher  Fetcher
	router   *router.Router
	hub      Broadcaster
	attempts Attempts
	dlq      DeadLetter
	log      *slog.Logger
}

// New returns a Consumer. hub may be nil to disable fan-out.
func New(cfg Config, fetcher Fetcher, r *router.Router, hub Broadcaster, attempts Attempts, dlq DeadLetter, log *slog.Logger) *Consumer {
	return &Consumer{
		cfg:      cfg.withDefaults(),
		fetcher:  fetcher,
		router:   r,
		hub:      hub,
		attempts: attempts,
		dlq:      dlq,
		log:      log,
	}
}

// task is one fetched message moving through a lane toward its commit.
// done is closed when the outcome is known and the message may be committed.
type task struct {
	msg       kafka.Message
	env       *messaging.Envelope
	broadcast bool
	done      chan struct{}
}

// Run consumes until ctx is cancelled. Messages flow through two paths that
// meet at the commit loop: lanes resolve outcomes in per-key order, and the
// commit loop acknowledges in fetch order so a still-unresolved message is
// never overtaken by a later commit.
func (c *Consumer) Run(ctx context.Context) error {
	lanes := make([]chan *task, c.cfg.Lanes)
	for i := range lanes {
		lanes[i] = make(chan *task, c.cfg.Prefetch)
	}
	commits := make(chan *task, c.cfg.Prefetch)
	slots := make(chan struct{}, c.cfg.Prefetch)

	var wg sync.WaitGroup
	for i := range lanes {
		wg.Add(1)
		go func(ch <-chan *task) {
			defer wg.Done()
			for t := range ch {
				c.process(ctx, t)
			}
		}(lanes[i])
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.commitLoop(ctx, commits, slots)
	}()

	c.log.Info("consumer started", "lanes", c.cfg.Lanes, "prefetch", c.cfg.Prefetch)

	for {
		msg, err := c.fetcher.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Error("fetch failed", "error", err)
			if !sleep(ctx, time.Second) {
				break
			}
			continue
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		t := &task{msg: msg, done: make(chan struct{})}
		env, err := messaging.DecodeEnvelope(msg.Value)
		if err != nil {
			// Poison: a message that is not an envelope can never succeed,
			// so it must not be retried forever. Acknowledge and log.
			c.log.Error("poison message", "offset", msg.Offset, "error", err)
			close(t.done)
			commits <- t
			continue
		}
		t.env = env
		commits <- t
		lanes[c.laneFor(msg, env)] <- t
	}

	for i := range lanes {
		close(lanes[i])
	}
	close(commits)
	wg.Wait()
	return ctx.Err()
}

// laneFor hashes the correlation key to a lane so envelopes for the same
// logical entity are applied in delivery order. Keyless envelopes spread by
// offset; their relative order does not matter.
func (c *Consumer) laneFor(msg kafka.Message, env *messaging.Envelope) int {
	key := env.CorrelationKey()
	if key == "" {
		key = string(msg.Key)
	}
	if key == "" {
		return int(msg.Offset % int64(c.cfg.Lanes))
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(c.cfg.Lanes))
}

// process drives one message to a resolved outcome: applied or skipped
// resolves immediately, a validation failure dead-letters, and any other
// failure retries in-lane until the attempt budget sends it to the
// dead-letter sink. Only a cancelled context leaves a task unresolved, and
// then nothing after it is committed either.
func (c *Consumer) process(ctx context.Context, t *task) {
	id := messageID(t.msg)
	key := t.env.CorrelationKey()

	for {
		if ctx.Err() != nil {
			return
		}
		attempt, err := c.attempts.Bump(ctx, id)
		if err != nil {
			// Without the counter we still process; the budget just cannot
			// trigger until the counter is reachable again.
			c.log.Warn("attempt counter unavailable", "message", id, "error", err)
			attempt = 0
		}

		hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
		outcome, herr := c.router.Dispatch(hctx, t.env)
		cancel()

		if herr == nil {
			t.broadcast = outcome == router.Applied && c.broadcasts(t.env.Kind)
			if err := c.attempts.Clear(ctx, id); err != nil && ctx.Err() == nil {
				c.log.Warn("attempt counter clear failed", "message", id, "error", err)
			}
			c.log.Info("event handled",
				"kind", string(t.env.Kind), "key", key, "outcome", outcome.String())
			close(t.done)
			return
		}

		c.log.Error("handler failed",
			"kind", string(t.env.Kind), "key", key, "attempt", attempt, "error", herr)

		if errors.Is(herr, messaging.ErrValidation) {
			// A recognized kind with a malformed payload can never become
			// valid; redelivering it would loop forever.
			c.toDeadLetter(ctx, t, id, key, "invalid payload")
			return
		}
		if attempt > 0 && attempt >= int64(c.cfg.MaxAttempts) {
			c.toDeadLetter(ctx, t, id, key, "attempt budget exhausted")
			return
		}
		if !sleep(ctx, c.cfg.RetryDelay) {
			return
		}
	}
}

// toDeadLetter routes the message to the dead-letter sink and resolves the
// task. Publish failures are retried: the event is never silently lost, it
// stays uncommitted until it lands somewhere durable.
func (c *Consumer) toDeadLetter(ctx context.Context, t *task, id, key, reason string) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.dlq.PublishRaw(ctx, key, t.msg.Value)
		if err == nil {
			break
		}
		c.log.Error("dead-letter publish failed", "message", id, "error", err)
		if !sleep(ctx, c.cfg.RetryDelay) {
			return
		}
	}
	c.log.Warn("message dead-lettered",
		"kind", string(t.env.Kind), "key", key, "reason", reason)
	if err := c.attempts.Clear(ctx, id); err != nil && ctx.Err() == nil {
		c.log.Warn("attempt counter clear failed", "message", id, "error", err)
	}
	close(t.done)
}

// commitLoop acknowledges resolved messages in fetch order and broadcasts
// applied events after their commit, matching the ack-then-fan-out contract.
func (c *Consumer) commitLoop(ctx context.Context, commits <-chan *task, slots <-chan struct{}) {
	for t := range commits {
		select {
		case <-t.done:
		case <-ctx.Done():
			return
		}
		if err := c.fetcher.CommitMessages(ctx, t.msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The outcome is known and idempotent; a redelivery caused by a
			// lost commit resolves to a skip on the next pass.
			c.log.Error("commit failed", "offset", t.msg.Offset, "error", err)
		}
		if t.broadcast && c.hub != nil {
			c.hub.Broadcast(t.msg.Value)
		}
		<-slots
	}
}

func (c *Consumer) broadcasts(kind messaging.Kind) bool {
	if kind == messaging.KindNewProduct {
		return c.cfg.BroadcastProducts
	}
	return true
}

// messageID identifies one delivery slot stably across redeliveries.
func messageID(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

// sleep waits d or until ctx is cancelled, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
