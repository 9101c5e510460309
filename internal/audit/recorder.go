// Package audit keeps the append-only record of validated send decisions
// and aggregation runs. Entries are never rewritten or removed; retention
// is bounded by the enclosing session's lifetime.
package audit

import (
	"sync"
	"time"

	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/google/uuid"
)

// Recorder is the append-only audit log. Appends are serialized so entries
// never interleave and ordering reflects real completion order.
type Recorder struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	now     func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// NewRecorderWithClock creates a recorder with an injected clock.
func NewRecorderWithClock(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// RecordVerdict appends one send-validation decision, allow or deny.
func (r *Recorder) RecordVerdict(actor string, subjectCount int, verdict model.ValidationVerdict) model.AuditEntry {
	entry := model.AuditEntry{
		ID:           uuid.NewString(),
		Actor:        actor,
		Kind:         model.AuditSendValidation,
		SubjectCount: subjectCount,
		Allowed:      verdict.Allowed,
		RuleIDs:      verdict.RuleIDs(),
	}
	return r.append(entry)
}

// RecordAggregation appends one aggregation run.
func (r *Recorder) RecordAggregation(actor string, subjectCount int) model.AuditEntry {
	entry := model.AuditEntry{
		ID:           uuid.NewString(),
		Actor:        actor,
		Kind:         model.AuditAggregation,
		SubjectCount: subjectCount,
		Allowed:      true,
	}
	return r.append(entry)
}

// Restore seeds the recorder with previously persisted entries. Used by the
// session store when reloading a session; entries keep their original IDs
// and timestamps.
func (r *Recorder) Restore(entries []model.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries[:0], entries...)
}

func (r *Recorder) append(entry model.AuditEntry) model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.Timestamp = r.now()
	r.entries = append(r.entries, entry)
	return entry
}

// Entries returns a copy of the log in append order. The copy keeps
// callers from mutating history.
func (r *Recorder) Entries() []model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
