package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("pubsub: publisher closed")

// Message is a single payload published to a broadcast channel.
// Key groups related messages (a room id); drivers that support
// partitioning or subject hierarchies use it, others ignore it.
type Message struct {
	Key     string
	Payload []byte
}

// Publisher publishes messages to the event bus. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg *Message) error
	Close() error
}
