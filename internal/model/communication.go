package model

import "time"

// Template is one pre-approved outreach message. Bodies use Go template
// placeholders over canonical field names; AllowedFields is the closed list
// of fields the body may reference.
type Template struct {
	ID            string
	Subject       string
	Body          string
	AllowedFields []CanonicalField
}

// PermitsField reports whether the template may reference the given field.
func (t Template) PermitsField(f CanonicalField) bool {
	for _, allowed := range t.AllowedFields {
		if allowed == f {
			return true
		}
	}
	return false
}

// CommunicationRequest is one attempted send: a template, the selected
// recipients, and fill variables. Ephemeral, created per attempt.
type CommunicationRequest struct {
	TemplateID       string
	Recipients       []ScoredProfile
	Variables        map[string]string
	Actor            string
	BulkAcknowledged bool
}

// Violation is one triggered compliance rule with its operator-facing reason.
type Violation struct {
	RuleID string
	Reason string
}

// ValidationVerdict is the outcome of compliance validation. Immutable once
// produced; a deny is normal data, not a fault.
type ValidationVerdict struct {
	Allowed    bool
	Violations []Violation
}

// RuleIDs returns the triggered rule identifiers in evaluation order.
func (v ValidationVerdict) RuleIDs() []string {
	ids := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		ids = append(ids, violation.RuleID)
	}
	return ids
}

// AuditKind distinguishes the operations the audit recorder tracks.
type AuditKind string

// Audit kind constants.
const (
	AuditSendValidation AuditKind = "send_validation"
	AuditAggregation    AuditKind = "aggregation"
)

// AuditEntry is one append-only audit log record. Never mutated or deleted.
type AuditEntry struct {
	ID           string
	Timestamp    time.Time
	Actor        string
	Kind         AuditKind
	SubjectCount int
	Allowed      bool
	RuleIDs      []string
}
