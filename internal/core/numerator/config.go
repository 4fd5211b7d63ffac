// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"time"
)

// Format selects how the allocated counter value is rendered into a
// document number. Companies choose a format in their settings.
type Format string

const (
	// FormatPrefixYear4 renders PREFIX-YYYY-0001 (default).
	FormatPrefixYear4 Format = "prefix-year"

	// FormatPrefixYear2 renders PREFIX-YY-0001.
	FormatPrefixYear2 Format = "prefix-yy"

	// FormatSeqYear renders 0001-YYYY (no prefix).
	FormatSeqYear Format = "seq-year"
)

// Config holds numbering configuration for one document family.
type Config struct {
	// Prefix added to numbers (e.g., "INV"); ignored by FormatSeqYear
	Prefix string

	// Format selects the rendering layout
	Format Format

	// PadWidth is the minimum counter width (default 4)
	PadWidth int

	// ResetPeriod: "year" or "never". Yearly reset scopes the counter
	// key by the period year, so each January starts at 1.
	ResetPeriod string
}

// DefaultConfig returns standard invoice numbering (INV-YYYY-0001).
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		Format:      FormatPrefixYear4,
		PadWidth:    4,
		ResetPeriod: "year",
	}
}

// padWidth returns the effective counter width.
func (c Config) padWidth() int {
	if c.PadWidth <= 0 {
		return 4
	}
	return c.PadWidth
}

// Render formats an allocated counter value into a document number.
// Shared by the database generator and by tests; the emergency fallback
// path in the invoice service does not use it.
func (c Config) Render(value int64, period time.Time) string {
	seq := fmt.Sprintf("%0*d", c.padWidth(), value)
	switch c.Format {
	case FormatPrefixYear2:
		return fmt.Sprintf("%s-%02d-%s", c.Prefix, period.Year()%100, seq)
	case FormatSeqYear:
		return fmt.Sprintf("%s-%d", seq, period.Year())
	default:
		return fmt.Sprintf("%s-%d-%s", c.Prefix, period.Year(), seq)
	}
}

// Key returns the counter identity for a period. Yearly-reset configs
// get one counter per year; "never" shares a single counter.
func (c Config) Key(scope string, period time.Time) string {
	if c.ResetPeriod == "never" {
		return fmt.Sprintf("%s_%s", c.Prefix, scope)
	}
	return fmt.Sprintf("%s_%s_%d", c.Prefix, scope, period.Year())
}
