package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultAMQPChannels is the number of confirm-mode channels publishes are
// spread across when AMQPConfig.Channels is unset.
const DefaultAMQPChannels = 4

// AMQPPublisher implements Publisher on a durable RabbitMQ fanout exchange
// named after the channel. Messages are persistent and publisher confirms
// are awaited. Up to AMQPConfig.Channels publishes are in flight at once,
// each on its own AMQP channel. A dropped connection is re-dialled on the
// next Publish.
type AMQPPublisher struct {
	url  string
	pool *channelPool[*amqp.Channel]

	mu        sync.Mutex
	conn      *amqp.Connection
	exchanges map[string]bool
}

// NewAMQPPublisher dials RabbitMQ and declares the exchange for channel.
func NewAMQPPublisher(cfg AMQPConfig, channel string) (*AMQPPublisher, error) {
	size := cfg.Channels
	if size <= 0 {
		size = DefaultAMQPChannels
	}

	p := &AMQPPublisher{
		url:       cfg.URL,
		exchanges: make(map[string]bool),
	}
	p.pool = newChannelPool(size, p.openChannel,
		func(ch *amqp.Channel) bool { return !ch.IsClosed() },
		func(ch *amqp.Channel) { _ = ch.Close() },
	)

	ch, err := p.pool.get(context.Background())
	if err != nil {
		return nil, err
	}
	err = p.declare(ch, channel)
	p.pool.put(ch, err == nil)
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// openChannel opens a confirm-mode channel, dialling first if the
// connection is missing or closed.
func (p *AMQPPublisher) openChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		p.conn = conn
		p.exchanges = make(map[string]bool)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return ch, nil
}

func (p *AMQPPublisher) declare(ch *amqp.Channel, exchange string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exchanges[exchange] {
		return nil
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	p.exchanges[exchange] = true
	return nil
}

// Publish publishes msg to the channel's fanout exchange and waits for the
// broker to confirm it.
func (p *AMQPPublisher) Publish(ctx context.Context, channel string, msg *Message) error {
	ch, err := p.pool.get(ctx)
	if err != nil {
		return err
	}

	err = p.publish(ctx, ch, channel, msg)
	p.pool.put(ch, err == nil)
	return err
}

func (p *AMQPPublisher) publish(ctx context.Context, ch *amqp.Channel, exchange string, msg *Message) error {
	if err := p.declare(ch, exchange); err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		exchange,
		"",    // routing key, ignored by fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Key,
			Timestamp:    time.Now(),
			Body:         msg.Payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to rabbitmq: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm not received: %w", err)
	}
	if !acked {
		return errors.New("rabbitmq nacked message")
	}
	return nil
}

// Close closes idle channels and the connection. Publishes still in flight
// fail once the connection is gone.
func (p *AMQPPublisher) Close() error {
	p.pool.close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
