// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator allocates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
//
// The scope argument isolates counters between companies: two companies
// with the same prefix never share a sequence.
type Generator interface {
	// GetNextNumber atomically allocates the next document number.
	// Pattern depends on cfg.Format (e.g., INV-2026-0001).
	//
	// The allocation must be safe under concurrent callers: two calls
	// for the same scope and period never return the same number.
	GetNextNumber(ctx context.Context, scope string, cfg Config, period time.Time) (string, error)

	// SetNextNumber sets the next counter value (for migration purposes).
	SetNextNumber(ctx context.Context, scope string, cfg Config, period time.Time, value int64) error
}
