package idgen

import (
	"fmt"

	"github.com/nrednav/cuid2"
)

const DefaultCUID2Length = 24

// CUID2Generator generates CUID2 IDs.
type CUID2Generator struct {
	generate func() string
}

// NewCUID2Generator creates a new CUID2Generator. length must be between
// 2 and 32.
func NewCUID2Generator(length int) (*CUID2Generator, error) {
	if length < 2 || length > 32 {
		return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
	}
	gen, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, fmt.Errorf("failed to init CUID2 generator: %w", err)
	}
	return &CUID2Generator{generate: gen}, nil
}

func (g *CUID2Generator) Generate() (string, error) {
	return g.generate(), nil
}
