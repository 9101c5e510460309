package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_AppendOrder(t *testing.T) {
	r := NewRecorder()

	r.RecordAggregation("analyst", 10)
	r.RecordVerdict("analyst", 3, model.ValidationVerdict{Allowed: true})
	r.RecordVerdict("analyst", 600, model.ValidationVerdict{
		Allowed:    false,
		Violations: []model.Violation{{RuleID: "bulk_ack_required", Reason: "over threshold"}},
	})

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, model.AuditAggregation, entries[0].Kind)
	assert.Equal(t, model.AuditSendValidation, entries[1].Kind)
	assert.True(t, entries[1].Allowed)
	assert.False(t, entries[2].Allowed)
	assert.Equal(t, []string{"bulk_ack_required"}, entries[2].RuleIDs)
}

func TestRecorder_ExistingEntriesNeverChange(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 5; i++ {
		r.RecordAggregation("analyst", i)
	}
	snapshot := r.Entries()

	for i := 0; i < 20; i++ {
		r.RecordVerdict("analyst", i, model.ValidationVerdict{Allowed: true})
	}

	after := r.Entries()
	require.GreaterOrEqual(t, len(after), len(snapshot))
	for i := range snapshot {
		assert.Equal(t, snapshot[i], after[i], "entry %d changed after later appends", i)
	}
}

func TestRecorder_EntriesReturnsCopy(t *testing.T) {
	r := NewRecorder()
	r.RecordAggregation("analyst", 1)

	entries := r.Entries()
	entries[0].Actor = "tampered"

	assert.Equal(t, "analyst", r.Entries()[0].Actor)
}

func TestRecorder_ConcurrentAppends(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	const writers = 8
	const perWriter = 50
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.RecordVerdict("worker", 1, model.ValidationVerdict{Allowed: true})
			}
		}()
	}
	wg.Wait()

	entries := r.Entries()
	require.Len(t, entries, writers*perWriter)

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		assert.False(t, ids[e.ID], "duplicate entry id %s", e.ID)
		ids[e.ID] = true
	}
}

func TestRecorder_InjectedClock(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorderWithClock(func() time.Time { return fixed })

	entry := r.RecordAggregation("analyst", 4)
	assert.Equal(t, fixed, entry.Timestamp)
}

func TestRecorder_Restore(t *testing.T) {
	r := NewRecorder()
	r.Restore([]model.AuditEntry{
		{ID: "a", Kind: model.AuditAggregation, SubjectCount: 2, Allowed: true},
		{ID: "b", Kind: model.AuditSendValidation, SubjectCount: 9, Allowed: false},
	})

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, 2, r.Len())
}
