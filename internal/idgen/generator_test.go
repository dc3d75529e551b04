package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Strategies(t *testing.T) {
	tests := []struct {
		strategy string
		check    func(t *testing.T, id string)
	}{
		{"", func(t *testing.T, id string) {
			_, err := uuid.Parse(id)
			assert.NoError(t, err)
		}},
		{StrategyUUID, func(t *testing.T, id string) {
			parsed, err := uuid.Parse(id)
			require.NoError(t, err)
			assert.Equal(t, uuid.Version(4), parsed.Version())
		}},
		{StrategyULID, func(t *testing.T, id string) {
			_, err := ulid.Parse(id)
			assert.NoError(t, err)
		}},
		{StrategyKSUID, func(t *testing.T, id string) {
			_, err := ksuid.Parse(id)
			assert.NoError(t, err)
		}},
		{StrategyNanoID, func(t *testing.T, id string) {
			assert.Len(t, id, DefaultNanoIDSize)
		}},
		{StrategyCUID2, func(t *testing.T, id string) {
			assert.Len(t, id, DefaultCUID2Length)
		}},
	}

	for _, tt := range tests {
		t.Run("strategy="+tt.strategy, func(t *testing.T) {
			gen, err := New(tt.strategy)
			require.NoError(t, err)

			id, err := gen.Generate()
			require.NoError(t, err)
			tt.check(t, id)
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New("snowflake")
	assert.Error(t, err)
}

func TestGenerate_Distinct(t *testing.T) {
	for _, strategy := range []string{StrategyUUID, StrategyULID, StrategyKSUID, StrategyNanoID, StrategyCUID2} {
		gen, err := New(strategy)
		require.NoError(t, err)

		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			id, err := gen.Generate()
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "%s produced duplicate %s", strategy, id)
			seen[id] = struct{}{}
		}
	}
}

func TestNanoIDGenerator_InvalidArgs(t *testing.T) {
	_, err := NewNanoIDGenerator(0, DefaultNanoIDAlphabet)
	assert.Error(t, err)
	_, err = NewNanoIDGenerator(10, "a")
	assert.Error(t, err)
}

func TestCUID2Generator_InvalidLength(t *testing.T) {
	_, err := NewCUID2Generator(1)
	assert.Error(t, err)
	_, err = NewCUID2Generator(33)
	assert.Error(t, err)
}
