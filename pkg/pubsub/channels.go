package pubsub

import (
	"regexp"
	"strings"
)

// DefaultChannel is the broadcast channel room lifecycle events go to.
const DefaultChannel = "room-events"

var topicRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// KafkaTopic converts a channel name into a valid Kafka topic name.
//
//	"room-events"      → "room-events"
//	"rooms:lifecycle"  → "rooms-lifecycle"
func KafkaTopic(channel string) string {
	return topicRegexp.ReplaceAllString(channel, "-")
}

// NATSSubject converts a channel and key into a NATS subject so consumers
// can subscribe to "<channel>.>" or a single room.
//
//	("room-events", "abc") → "room-events.abc"
//	("room-events", "")    → "room-events"
func NATSSubject(channel, key string) string {
	base := strings.NewReplacer(" ", "_", "*", "_", ">", "_").Replace(channel)
	if key == "" {
		return base
	}
	return base + "." + strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(key)
}
