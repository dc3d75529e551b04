package idgen

import (
	"fmt"
	"strings"
)

// Strategy names accepted by New.
const (
	StrategyUUID   = "uuid"
	StrategyULID   = "ulid"
	StrategyKSUID  = "ksuid"
	StrategyNanoID = "nanoid"
	StrategyCUID2  = "cuid2"
)

// Generator produces opaque room identifiers. Identifiers are drawn from a
// space large enough that collisions are negligible, but callers must still
// handle a collision on insert.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// New returns the generator for strategy. An empty strategy selects UUID v4.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyUUID:
		return NewUUIDGenerator(), nil
	case StrategyULID:
		return NewULIDGenerator(), nil
	case StrategyKSUID:
		return NewKSUIDGenerator(), nil
	case StrategyNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case StrategyCUID2:
		return NewCUID2Generator(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}
