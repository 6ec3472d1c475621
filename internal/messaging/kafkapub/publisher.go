// Package kafkapub publishes envelopes to Kafka.
package kafkapub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes JSON envelopes to a single topic with hash-balanced keys
// so envelopes sharing a correlation key land on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

// New returns a Publisher for the given brokers and topic.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			Balancer:     &kafka.Hash{},
		},
	}
}

// PublishEvent marshals event as JSON and writes it keyed by key.
func (p *Publisher) PublishEvent(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.PublishRaw(ctx, key, data)
}

// PublishRaw writes value as-is, keyed by key.
func (p *Publisher) PublishRaw(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NewReader returns a consumer-group reader for the given topic. MaxBytes
// caps a single fetch; the consumer applies its own in-flight bound on top.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
}
