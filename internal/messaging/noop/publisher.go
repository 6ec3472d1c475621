package noop

import "context"

// Publisher is a no-op Publisher used when no dead-letter topic or mock
// producer is configured.
type Publisher struct{}

func (Publisher) PublishEvent(_ context.Context, _ string, _ any) error { return nil }

func (Publisher) PublishRaw(_ context.Context, _ string, _ []byte) error { return nil }

func (Publisher) Close() error { return nil }
