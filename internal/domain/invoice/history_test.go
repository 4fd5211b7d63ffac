package invoice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryPush_Bounded(t *testing.T) {
	var h History

	for i := 1; i <= 60; i++ {
		h.Push(NewEntry("user-1", ActionUpdated, nil, fmt.Sprintf("change %d", i)))
	}

	require.Len(t, h, HistoryLimit)
	// Oldest ten evicted: entries 11..60 survive in order
	assert.Equal(t, "change 11", h[0].Reason)
	assert.Equal(t, "change 60", h[len(h)-1].Reason)
}

func TestHistoryPush_UnderLimit(t *testing.T) {
	var h History

	h.Push(NewEntry("user-1", ActionCreated, nil, ""))
	h.Push(NewEntry("user-1", ActionSent, nil, ""))

	require.Len(t, h, 2)
	assert.Equal(t, ActionCreated, h[0].Action)
	assert.Equal(t, ActionSent, h[1].Action)
}

func TestHistoryLast(t *testing.T) {
	var h History
	assert.Nil(t, h.Last())

	h.Push(NewEntry("user-1", ActionCreated, nil, ""))
	h.Push(NewEntry("user-2", ActionPaid, nil, "wire-042"))

	last := h.Last()
	require.NotNil(t, last)
	assert.Equal(t, ActionPaid, last.Action)
	assert.Equal(t, "wire-042", last.Reason)
}

func TestNewEntry_SystemActor(t *testing.T) {
	entry := NewEntry("", ActionStatusChanged, nil, "past due date")
	assert.Nil(t, entry.Actor)
	assert.False(t, entry.Timestamp.IsZero())

	entry = NewEntry("emp-7", ActionStatusChanged, nil, "")
	require.NotNil(t, entry.Actor)
	assert.Equal(t, "emp-7", *entry.Actor)
}

func TestHistory_JSONBRoundTrip(t *testing.T) {
	var h History
	h.Push(NewEntry("user-1", ActionPaid, map[string]FieldChange{
		"paidAmount": {From: "0", To: "100"},
	}, "wire-001"))

	raw, err := h.Value()
	require.NoError(t, err)

	var decoded History
	require.NoError(t, decoded.Scan(raw))

	require.Len(t, decoded, 1)
	assert.Equal(t, ActionPaid, decoded[0].Action)
	assert.Equal(t, "wire-001", decoded[0].Reason)
	assert.Contains(t, decoded[0].Changes, "paidAmount")
}

func TestHistory_ScanNil(t *testing.T) {
	h := History{NewEntry("u", ActionCreated, nil, "")}
	require.NoError(t, h.Scan(nil))
	assert.Nil(t, []AuditEntry(h))
}

func TestHistory_ValueEmpty(t *testing.T) {
	var h History
	raw, err := h.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), raw)
}
