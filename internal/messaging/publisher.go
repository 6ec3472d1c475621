package messaging

import "context"

// Publisher writes envelopes to the durable queue. The mock producer API
// publishes structured events; the consumer publishes raw bytes when it
// dead-letters a message.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
	PublishRaw(ctx context.Context, key string, value []byte) error
	Close() error
}
