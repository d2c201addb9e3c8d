// Package uuid issues run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator issues identifiers for harvest runs.
type Generator interface {
	NewRunID() (uuid.UUID, error)
}

// V7 issues time-ordered UUIDv7 values, so run ids sort by start time.
type V7 struct{}

// NewRunID returns a fresh UUIDv7.
func (V7) NewRunID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}

// Fixed always returns the same id. Useful in tests.
type Fixed uuid.UUID

// NewRunID returns the fixed id.
func (f Fixed) NewRunID() (uuid.UUID, error) {
	return uuid.UUID(f), nil
}
