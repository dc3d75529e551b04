package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

// KafkaPublisher implements Publisher using Apache Kafka. Each Publish
// waits for its own delivery report, so a returned nil means the broker
// acknowledged the message.
type KafkaPublisher struct {
	producer *kafka.Producer
	config   KafkaConfig

	mu     sync.RWMutex
	closed bool
	doneCh chan struct{}
}

// NewKafkaPublisher creates a new Kafka-based publisher and makes sure the
// topic for channel exists.
func NewKafkaPublisher(cfg KafkaConfig, channel string) (*KafkaPublisher, error) {
	acks := cfg.Acks
	if acks == "" {
		acks = "all"
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               acks,
		"linger.ms":          5,
		"compression.type":   "snappy",
		"enable.idempotence": acks == "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		config:   cfg,
		doneCh:   make(chan struct{}),
	}

	go kp.eventHandler()

	if err := kp.ensureTopic(KafkaTopic(channel)); err != nil {
		l := pkglog.Component("pubsub")
		l.Warn().Err(err).Str(pkglog.FieldChannel, channel).Msg("failed to ensure kafka topic (may already exist)")
	}

	return kp, nil
}

// ensureTopic creates the topic if it doesn't exist.
func (k *KafkaPublisher) ensureTopic(topic string) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}
	replication := k.config.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Error)
		}
	}

	return nil
}

// eventHandler drains producer-level events. Per-message delivery reports
// go to the channel passed to Produce and never arrive here.
func (k *KafkaPublisher) eventHandler() {
	l := pkglog.Component("pubsub")
	for e := range k.producer.Events() {
		if ev, ok := e.(kafka.Error); ok {
			l.Warn().Err(ev).Bool("fatal", ev.IsFatal()).Msg("kafka producer error")
		}
	}
	close(k.doneCh)
}

// Publish produces msg to the channel's topic, keyed by msg.Key so that all
// events for one room land on the same partition.
func (k *KafkaPublisher) Publish(ctx context.Context, channel string, msg *Message) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrClosed
	}

	topic := KafkaTopic(channel)
	delivery := make(chan kafka.Event, 1)

	err := k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(msg.Key),
		Value: msg.Payload,
	}, delivery)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("kafka delivery not confirmed: %w", ctx.Err())
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka delivery event: %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	}
}

// Close flushes outstanding messages and closes the producer.
func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh

	return nil
}
