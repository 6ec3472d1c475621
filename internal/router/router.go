// Package router dispatches envelopes to domain handlers by kind.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shoppulse/dashsvc/internal/messaging"
)

// Outcome is the uniform result every handler reports. The consumer's
// acknowledgment decision depends only on this value and the returned error.
type Outcome int

const (
	// Applied means the mutation was performed: acknowledge and broadcast.
	Applied Outcome = iota
	// Skipped means the envelope was recognized but intentionally ignored,
	// e.g. a status update for a vanished order: acknowledge, no broadcast.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// HandlerFunc applies one envelope kind to the store. A non-nil error means
// the handler failed and the message must not be acknowledged, unless the
// error wraps messaging.ErrValidation, which the consumer dead-letters.
type HandlerFunc func(ctx context.Context, env *messaging.Envelope) (Outcome, error)

// Router maps each kind to exactly one handler.
type Router struct {
	log    *slog.Logger
	routes map[messaging.Kind]HandlerFunc
}

// New returns an empty Router.
func New(log *slog.Logger) *Router {
	return &Router{log: log, routes: make(map[messaging.Kind]HandlerFunc)}
}

// Register binds kind to fn. Registering the same kind twice is a wiring bug
// and returns an error so routing stays a total, deterministic function.
func (r *Router) Register(kind messaging.Kind, fn HandlerFunc) error {
	if _, dup := r.routes[kind]; dup {
		return fmt.Errorf("router: duplicate handler for kind %q", kind)
	}
	r.routes[kind] = fn
	return nil
}

// Dispatch routes env to its handler. Unknown kinds are logged and reported
// as Skipped so the consumer acknowledges them without mutation or broadcast.
func (r *Router) Dispatch(ctx context.Context, env *messaging.Envelope) (Outcome, error) {
	fn, ok := r.routes[env.Kind]
	if !ok {
		r.log.Warn("unknown event kind", "kind", string(env.Kind))
		return Skipped, nil
	}
	return fn(ctx, env)
}
