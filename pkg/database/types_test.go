package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64Set_Value(t *testing.T) {
	v, err := Int64Set{1, 22, 3}.Value()
	require.NoError(t, err)
	assert.Equal(t, ",1,22,3,", v)

	v, err = Int64Set{}.Value()
	require.NoError(t, err)
	assert.Equal(t, ",", v)
}

func TestInt64Set_Scan(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  Int64Set
	}{
		{"string", ",1,2,", Int64Set{1, 2}},
		{"bytes", []byte(",7,"), Int64Set{7}},
		{"empty set", ",", Int64Set{}},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Int64Set
			require.NoError(t, s.Scan(tt.input))
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestInt64Set_ScanErrors(t *testing.T) {
	var s Int64Set
	assert.Error(t, s.Scan(42))
	assert.Error(t, s.Scan(",1,x,"))
}

func TestInt64SetPattern(t *testing.T) {
	assert.Equal(t, ",12,", Int64SetToken(12))
	assert.Equal(t, "%,12,%", Int64SetPattern(12))
}
