package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9003, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Room.LeaseLength)
	assert.Equal(t, 5*time.Second, cfg.Room.StoreTimeout)
	assert.Equal(t, "uuid", cfg.Room.IDStrategy)
	assert.Equal(t, 5, cfg.Room.MaxCreateAttempts)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 8, cfg.Sweeper.PublishConcurrency)
	assert.Equal(t, "room-events", cfg.Events.Channel)
	assert.Equal(t, "redis", cfg.Events.Driver)
	assert.Equal(t, "localhost:9092", cfg.Events.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Events.AMQP.Channels)
	assert.Equal(t, "access-token", cfg.Auth.CookieName)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "9100")
	t.Setenv("ROOM_LEASE_LENGTH", "90s")
	t.Setenv("EVENTS_DRIVER", "nats")
	t.Setenv("NATS_URL", "nats://broker:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Room.LeaseLength)
	assert.Equal(t, "nats", cfg.Events.Driver)
	assert.Equal(t, "nats://broker:4222", cfg.Events.NATS.URL)
}

func TestLoad_LegacyMillis(t *testing.T) {
	t.Setenv("ROOM_EXPIRE_MILLIS", "1500")
	t.Setenv("ROOM_DELETION_INTERVAL_MILLIS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Room.LeaseLength)
	assert.Equal(t, 250*time.Millisecond, cfg.Sweeper.Interval)
}

func TestLoad_LegacyMillisInvalid(t *testing.T) {
	t.Setenv("ROOM_EXPIRE_MILLIS", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonPositiveDurations(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ROOM_LEASE_LENGTH", "0s"},
		{"ROOM_LEASE_LENGTH", "-1m"},
		{"SWEEPER_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
