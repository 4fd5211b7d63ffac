// Package numerator provides the PostgreSQL-backed document numbering
// service. Allocation is a single atomic UPSERT, never read-then-write:
// two concurrent callers can never observe the same counter value.
package numerator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"

	core "billfold/internal/core/numerator"
	"billfold/pkg/logger"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service allocates sequential document numbers from sys_sequences.
type Service struct {
	querier Querier
}

// Compile-time check against the domain contract.
var _ core.Generator = (*Service)(nil)

// New creates a numbering service.
func New(querier Querier) *Service {
	return &Service{querier: querier}
}

// GetNextNumber atomically allocates and renders the next number for
// a scope (company) and period.
func (s *Service) GetNextNumber(ctx context.Context, scope string, cfg core.Config, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := cfg.Key(scope, period)

	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}

	return cfg.Render(num, period), nil
}

// SetNextNumber sets the counter so the next allocation returns
// value. Used when migrating legacy numbering data.
func (s *Service) SetNextNumber(ctx context.Context, scope string, cfg core.Config, period time.Time, value int64) error {
	key := cfg.Key(scope, period)

	var current int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET current_val = GREATEST(sys_sequences.current_val, $2)
        RETURNING current_val
	`, key, value-1).Scan(&current)
	if err != nil {
		return fmt.Errorf("set next number for %s: %w", key, err)
	}
	return nil
}

// ParseSequence extracts the trailing numeric run of a legacy document
// number (e.g. "INV-2024-0042" -> 42). Corrupt data degrades to 0 with
// a logged anomaly instead of an error, so migration keeps moving.
func ParseSequence(ctx context.Context, number string) int64 {
	trimmed := strings.TrimRightFunc(number, unicode.IsDigit)
	run := number[len(trimmed):]
	if run == "" {
		logger.Warn(ctx, "document number has no trailing sequence", "number", number)
		return 0
	}

	var seq int64
	if _, err := fmt.Sscanf(run, "%d", &seq); err != nil {
		logger.Warn(ctx, "unparseable document number sequence", "number", number, "error", err)
		return 0
	}
	return seq
}
