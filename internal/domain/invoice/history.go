package invoice

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryLimit bounds the in-document audit trail. Older entries are
// evicted from the front; the full trail survives in the audit archive.
const HistoryLimit = 50

// Action classifies an audit entry.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionSent          Action = "sent"
	ActionPaid          Action = "paid"
	ActionStatusChanged Action = "status_changed"
)

// FieldChange records a single field mutation.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// AuditEntry is one immutable record of a state-changing action.
// Actor is nil for system-originated mutations (overdue sweep, relay).
type AuditEntry struct {
	Actor     *string                `json:"actor,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Action    Action                 `json:"action"`
	Changes   map[string]FieldChange `json:"changes,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

// History is a bounded append-only queue of audit entries. Entries are
// never edited or reordered after append.
type History []AuditEntry

// Push appends an entry, evicting the oldest once the bound is
// exceeded so exactly the most recent HistoryLimit survive.
func (h *History) Push(entry AuditEntry) {
	*h = append(*h, entry)
	if overflow := len(*h) - HistoryLimit; overflow > 0 {
		*h = append(History(nil), (*h)[overflow:]...)
	}
}

// Last returns the most recent entry, or nil when empty.
func (h History) Last() *AuditEntry {
	if len(h) == 0 {
		return nil
	}
	return &h[len(h)-1]
}

// Scan implements sql.Scanner for PostgreSQL JSONB.
func (h *History) Scan(src any) error {
	if src == nil {
		*h = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for History: %T", src)
	}

	if len(source) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(source, h)
}

// Value implements driver.Valuer for PostgreSQL JSONB.
func (h History) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// NewEntry builds an audit entry stamped with the current time.
func NewEntry(actor string, action Action, changes map[string]FieldChange, reason string) AuditEntry {
	entry := AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Changes:   changes,
		Reason:    reason,
	}
	if actor != "" {
		entry.Actor = &actor
	}
	return entry
}
