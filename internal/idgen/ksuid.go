package idgen

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// KSUIDGenerator generates KSUIDs (128 random bits plus a timestamp).
type KSUIDGenerator struct{}

// NewKSUIDGenerator creates a new KSUIDGenerator.
func NewKSUIDGenerator() *KSUIDGenerator {
	return &KSUIDGenerator{}
}

func (g *KSUIDGenerator) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}
