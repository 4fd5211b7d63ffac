package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	core "billfold/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64 // Simulates the sys_sequences counter
	lastKey      string
	lastArgs     []any
	err          error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return &mockRow{err: m.err}
	}

	m.lastArgs = args
	if len(args) > 0 {
		if key, ok := args[0].(string); ok {
			m.lastKey = key
		}
	}

	// SetNextNumber passes (key, value); the UPSERT takes GREATEST.
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			if val > m.currentValue {
				m.currentValue = val
			}
			return &mockRow{val: m.currentValue}
		}
	}

	// Allocation UPSERT increments by one.
	m.currentValue++
	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("INV")
	period := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, "acme", cfg, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2025-0001" {
		t.Errorf("expected INV-2025-0001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, "acme", cfg, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2025-0002" {
		t.Errorf("expected INV-2025-0002, got %s", num)
	}

	if q.lastKey != "INV_acme_2025" {
		t.Errorf("expected counter key INV_acme_2025, got %s", q.lastKey)
	}
}

func TestGetNextNumber_Concurrent(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("INV")
	period := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	const callers = 50

	var wg sync.WaitGroup
	numbers := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(ctx, "acme", cfg, period)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			numbers <- num
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool, callers)
	for num := range numbers {
		if seen[num] {
			t.Errorf("number %s allocated twice", num)
		}
		seen[num] = true
	}
	if len(seen) != callers {
		t.Errorf("expected %d distinct numbers, got %d", callers, len(seen))
	}
}

func TestGetNextNumber_KeyScopedByYear(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("INV")

	_, _ = svc.GetNextNumber(ctx, "acme", cfg, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	key2025 := q.lastKey

	_, _ = svc.GetNextNumber(ctx, "acme", cfg, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if q.lastKey == key2025 {
		t.Errorf("expected a fresh counter key for the new year, got %s twice", q.lastKey)
	}
}

func TestGetNextNumber_QueryError(t *testing.T) {
	q := &mockQuerier{err: errors.New("connection refused")}
	svc := New(q)

	_, err := svc.GetNextNumber(context.Background(), "acme", core.DefaultConfig("INV"), time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetNextNumber_NilService(t *testing.T) {
	var svc *Service

	_, err := svc.GetNextNumber(context.Background(), "acme", core.DefaultConfig("INV"), time.Now())
	if err == nil {
		t.Fatal("expected error from uninitialized service")
	}
}

func TestSetNextNumber(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("INV")
	period := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	// Next allocation should return 100, so the counter is set to 99.
	if err := svc.SetNextNumber(ctx, "acme", cfg, period, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.lastArgs) != 2 {
		t.Fatalf("expected 2 args, got %d", len(q.lastArgs))
	}
	if val, _ := q.lastArgs[1].(int64); val != 99 {
		t.Errorf("expected counter set to 99, got %d", val)
	}

	num, err := svc.GetNextNumber(ctx, "acme", cfg, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2025-0100" {
		t.Errorf("expected INV-2025-0100, got %s", num)
	}
}

func TestSetNextNumber_NeverLowersCounter(t *testing.T) {
	q := &mockQuerier{currentValue: 500}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("INV")
	period := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	if err := svc.SetNextNumber(ctx, "acme", cfg, period, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.currentValue != 500 {
		t.Errorf("expected counter to stay at 500, got %d", q.currentValue)
	}
}

func TestParseSequence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		number string
		want   int64
	}{
		{"INV-2024-0042", 42},
		{"INV-25-0007", 7},
		{"0001-2025", 2025},
		{"INV-2025-12345", 12345},
		{"INV-DRAFT", 0},
		{"", 0},
	}

	for _, tc := range tests {
		if got := ParseSequence(ctx, tc.number); got != tc.want {
			t.Errorf("ParseSequence(%q) = %d, want %d", tc.number, got, tc.want)
		}
	}
}
