// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// CanonicalField is one of the fixed internal field names that raw
// spreadsheet columns are normalized to.
type CanonicalField string

// Canonical field constants.
const (
	FieldSSN                CanonicalField = "ssn"
	FieldStudentID          CanonicalField = "student_id"
	FieldFirstName          CanonicalField = "first_name"
	FieldLastName           CanonicalField = "last_name"
	FieldEmail              CanonicalField = "email"
	FieldDaysDelinquent     CanonicalField = "days_delinquent"
	FieldOutstandingBalance CanonicalField = "outstanding_balance"
	FieldLoanType           CanonicalField = "loan_type"
	FieldMajor              CanonicalField = "major"
	FieldEnrollmentStatus   CanonicalField = "enrollment_status"
)

// CanonicalFields lists every canonical field in a stable order.
var CanonicalFields = []CanonicalField{
	FieldSSN,
	FieldStudentID,
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldDaysDelinquent,
	FieldOutstandingBalance,
	FieldLoanType,
	FieldMajor,
	FieldEnrollmentStatus,
}

// Provenance records which source(s) contributed a unified profile's fields.
type Provenance string

// Provenance constants.
const (
	ProvenanceMatched   Provenance = "MATCHED"
	ProvenanceNSLDSOnly Provenance = "NSLDS_ONLY"
	ProvenanceSISOnly   Provenance = "SIS_ONLY"
)

// KeyKind identifies which identifier a borrower key is built from.
type KeyKind string

// Key kind constants, in matching priority order.
const (
	KeySSN       KeyKind = "ssn"
	KeyStudentID KeyKind = "student_id"
	KeyUnmatched KeyKind = "unmatched"
)

// BorrowerKey is the matching identity for a borrower: SSN when present and
// well-formed on both sides, else student ID, else an unmatched placeholder.
// Immutable once a unified profile exists.
type BorrowerKey struct {
	Kind  KeyKind
	Value string
}

func (k BorrowerKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Value)
}

// RawCell is one (column name, value) pair as read from an input row.
type RawCell struct {
	Column string
	Value  string
}

// RawRecord is an ordered sequence of cells for one input row. Values stay
// untyped strings until normalized.
type RawRecord []RawCell

// Table is a parsed tabular input: a header plus raw rows.
type Table struct {
	Headers []string
	Rows    []RawRecord
}

// NormalizedRecord is one input row after column normalization: canonical
// field names mapped to cleaned string values. Row is the 1-based source
// row number for error reporting.
type NormalizedRecord struct {
	Fields map[CanonicalField]string
	Row    int
}

// Get returns the value for a canonical field, or "" if absent.
func (r NormalizedRecord) Get(f CanonicalField) string {
	return r.Fields[f]
}

// NormalizedSSN returns the record's SSN reduced to digits, or "" when the
// value is absent or not exactly nine digits.
func (r NormalizedRecord) NormalizedSSN() string {
	return NormalizeSSN(r.Fields[FieldSSN])
}

// NormalizedStudentID returns the record's student ID trimmed and
// lowercased, or "" when absent.
func (r NormalizedRecord) NormalizedStudentID() string {
	return strings.ToLower(strings.TrimSpace(r.Fields[FieldStudentID]))
}

// NormalizeSSN strips non-digits and requires exactly nine digits.
func NormalizeSSN(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteByte(byte(c))
		}
	}
	if b.Len() != 9 {
		return ""
	}
	return b.String()
}

// UnifiedProfile is one borrower after record linkage. Identity fields are
// never overwritten after creation except to fill previously-absent values
// from the other source.
type UnifiedProfile struct {
	Key              BorrowerKey
	FirstName        string
	LastName         string
	Email            string
	SSN              string // normalized nine digits, "" if absent
	StudentID        string
	LoanType         string
	Major            string
	EnrollmentStatus string
	Provenance       Provenance

	// Delinquency fields come from the NSLDS side and are only meaningful
	// when HasDelinquency is set.
	DaysDelinquent     float64
	OutstandingBalance float64
	HasDelinquency     bool

	// Duplicates counts extra same-key rows coalesced within a source.
	Duplicates int
}

// DisplayName returns a printable borrower name.
func (p UnifiedProfile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Key.String()
	}
	return name
}

// LinkageConflict flags a record that matched one counterpart by SSN and a
// different counterpart by student ID. The SSN match wins; the conflict is
// reported rather than merged three-way.
type LinkageConflict struct {
	Key            BorrowerKey
	SSNMatch       string // student ID of the SSN-matched counterpart
	StudentIDMatch string // student ID of the rejected tier-2 counterpart
	Detail         string
}

// LinkResult is the output of one linkage run.
type LinkResult struct {
	Profiles  []UnifiedProfile
	Conflicts []LinkageConflict
}

// Matched returns the number of fully matched profiles.
func (r LinkResult) Matched() int {
	n := 0
	for _, p := range r.Profiles {
		if p.Provenance == ProvenanceMatched {
			n++
		}
	}
	return n
}
