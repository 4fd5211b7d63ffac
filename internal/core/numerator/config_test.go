package numerator

import (
	"testing"
	"time"
)

func TestRender(t *testing.T) {
	period := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  Config
		val  int64
		want string
	}{
		{"prefix-year default", DefaultConfig("INV"), 1, "INV-2025-0001"},
		{"prefix-year large", DefaultConfig("INV"), 12345, "INV-2025-12345"},
		{"prefix-yy", Config{Prefix: "INV", Format: FormatPrefixYear2}, 42, "INV-25-0042"},
		{"seq-year", Config{Format: FormatSeqYear}, 7, "0007-2025"},
		{"custom pad width", Config{Prefix: "ORD", Format: FormatPrefixYear4, PadWidth: 6}, 3, "ORD-2025-000003"},
		{"unknown format falls back", Config{Prefix: "INV", Format: "bogus"}, 1, "INV-2025-0001"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.cfg.Render(tc.val, period)
			if got != tc.want {
				t.Errorf("Render(%d) = %q, want %q", tc.val, got, tc.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	period := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	yearly := DefaultConfig("INV")
	if got := yearly.Key("acme", period); got != "INV_acme_2025" {
		t.Errorf("yearly Key = %q", got)
	}

	next := period.AddDate(1, 0, 0)
	if yearly.Key("acme", period) == yearly.Key("acme", next) {
		t.Error("yearly keys must differ across years")
	}

	never := Config{Prefix: "INV", ResetPeriod: "never"}
	if got := never.Key("acme", period); got != "INV_acme" {
		t.Errorf("never Key = %q", got)
	}
	if never.Key("acme", period) != never.Key("acme", next) {
		t.Error("never-reset key must be stable across years")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("INV")
	if cfg.Format != FormatPrefixYear4 {
		t.Errorf("Format = %q", cfg.Format)
	}
	if cfg.PadWidth != 4 {
		t.Errorf("PadWidth = %d", cfg.PadWidth)
	}
	if cfg.ResetPeriod != "year" {
		t.Errorf("ResetPeriod = %q", cfg.ResetPeriod)
	}
}
