package pubsub

import "context"

// NoopPublisher discards every message.
type NoopPublisher struct{}

// NewNoopPublisher returns a publisher that drops messages.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (NoopPublisher) Publish(context.Context, string, *Message) error { return nil }

func (NoopPublisher) Close() error { return nil }
