package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/metrics"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/pubsub"
)

// Publisher announces room lifecycle transitions.
type Publisher interface {
	Publish(ctx context.Context, event *domain.RoomEvent) error
}

// BusPublisher serialises room events and sends them to one broadcast
// channel on the configured bus. Delivery is at least once; consumers must
// tolerate repeats.
type BusPublisher struct {
	bus     pubsub.Publisher
	channel string
	timeout time.Duration
}

// NewBusPublisher creates a Publisher on top of bus. Each publish is bounded
// by timeout when it is positive.
func NewBusPublisher(bus pubsub.Publisher, channel string, timeout time.Duration) *BusPublisher {
	if channel == "" {
		channel = pubsub.DefaultChannel
	}
	return &BusPublisher{bus: bus, channel: channel, timeout: timeout}
}

// Publish implements Publisher.
func (p *BusPublisher) Publish(ctx context.Context, event *domain.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal room event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err = p.bus.Publish(ctx, p.channel, &pubsub.Message{
		Key:     event.Room.RoomID,
		Payload: payload,
	})
	metrics.ObservePublish(string(event.EventType), err)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.EventType, err)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldEventType, string(event.EventType)).
		Str(log.FieldRoomID, event.Room.RoomID).
		Str(log.FieldChannel, p.channel).
		Msg("room event published")
	return nil
}
