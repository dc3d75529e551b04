package pubsub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSPublisher implements Publisher on NATS. With JetStream enabled the
// channel is backed by a stream and each publish is acknowledged; otherwise
// messages are sent with core NATS publish.
type NATSPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSPublisher connects to NATS and, in JetStream mode, creates or
// updates the stream for channel.
func NewNATSPublisher(cfg NATSConfig, channel string) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("room-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	p := &NATSPublisher{nc: nc}
	if !cfg.JetStream {
		return p, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := NATSSubject(channel, "")
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      strings.ReplaceAll(KafkaTopic(channel), ".", "_"),
		Subjects:  []string{base, base + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	p.js = js
	return p, nil
}

// Publish sends msg on the subject "<channel>.<key>".
func (n *NATSPublisher) Publish(ctx context.Context, channel string, msg *Message) error {
	if n.nc.IsClosed() {
		return ErrClosed
	}

	subject := NATSSubject(channel, msg.Key)
	if n.js != nil {
		if _, err := n.js.Publish(ctx, subject, msg.Payload); err != nil {
			return fmt.Errorf("failed to publish to jetstream: %w", err)
		}
		return nil
	}

	if err := n.nc.Publish(subject, msg.Payload); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATSPublisher) Close() error {
	if n.nc.IsClosed() {
		return nil
	}
	return n.nc.Drain()
}
