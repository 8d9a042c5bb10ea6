package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs used to correlate portal requests with
// backend logs.
type Generator interface {
	NewID() (string, error)
}

type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}

	return v.String(), nil
}

// MustNewID falls back to an empty id when the random source fails; request
// ids are advisory.
func MustNewID(g Generator) string {
	if g == nil {
		return ""
	}
	v, err := g.NewID()
	if err != nil {
		return ""
	}
	return v
}
