// Package schema maps heterogeneous input column names onto the canonical
// internal field set. Matching is case-insensitive and ignores whitespace
// and punctuation, driven by a synonym table per canonical field.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/model"
)

// Mode selects which import is being normalized. The required canonical
// fields differ per mode.
type Mode int

// Import modes.
const (
	ModeNSLDS Mode = iota
	ModeSIS
)

func (m Mode) String() string {
	switch m {
	case ModeNSLDS:
		return "NSLDS"
	case ModeSIS:
		return "SIS"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Error reports a failed or ambiguous column mapping.
type Error struct {
	Mode    Mode
	Field   model.CanonicalField
	Columns []string
	Reason  string
}

func (e *Error) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s import: field %q: %s (columns: %s)",
			e.Mode, e.Field, e.Reason, strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("%s import: field %q: %s", e.Mode, e.Field, e.Reason)
}

// synonyms maps each canonical field to the normalized forms of its known
// column-name synonyms. Data-driven so institutions can extend it without
// touching matching code.
var synonyms = map[model.CanonicalField][]string{
	model.FieldSSN:                {"ssn", "borrowerssn", "socialsecuritynumber", "social"},
	model.FieldStudentID:          {"studentid", "studentnumber", "sisid"},
	model.FieldFirstName:          {"firstname", "borrowerfirstname", "givenname"},
	model.FieldLastName:           {"lastname", "borrowerlastname", "surname", "familyname"},
	model.FieldEmail:              {"email", "emailaddress", "borroweremail"},
	model.FieldDaysDelinquent:     {"daysdelinquent", "dayspastdue", "delinquentdays"},
	model.FieldOutstandingBalance: {"opb", "outstandingbalance", "outstandingprincipalbalance", "currentbalance"},
	model.FieldLoanType:           {"loantype", "loanprogram"},
	model.FieldMajor:              {"major", "academicprogram", "fieldofstudy", "programofstudy"},
	model.FieldEnrollmentStatus:   {"enrollmentstatus", "enrollment"},
}

// requiredFields lists the canonical fields each import mode cannot proceed
// without. The caller must never substitute a best-guess column for one of
// these.
var requiredFields = map[Mode][]model.CanonicalField{
	ModeNSLDS: {model.FieldSSN, model.FieldDaysDelinquent, model.FieldOutstandingBalance},
	ModeSIS:   {model.FieldStudentID, model.FieldMajor},
}

// numericFields are cleaned and parse-checked during Apply.
var numericFields = map[model.CanonicalField]bool{
	model.FieldDaysDelinquent:     true,
	model.FieldOutstandingBalance: true,
}

// Mapping is a resolved raw-column to canonical-field mapping for one table.
type Mapping struct {
	mode     Mode
	byColumn map[string]model.CanonicalField
}

// Field returns the canonical field a raw column maps to, if any.
func (m Mapping) Field(column string) (model.CanonicalField, bool) {
	f, ok := m.byColumn[column]
	return f, ok
}

// Fields returns the set of canonical fields the mapping covers.
func (m Mapping) Fields() map[model.CanonicalField]bool {
	out := make(map[model.CanonicalField]bool, len(m.byColumn))
	for _, f := range m.byColumn {
		out[f] = true
	}
	return out
}

// normalizeKey lowercases a column name and strips whitespace and
// punctuation so "Borrower SSN", "borrower_ssn" and "BorrowerSSN" collide.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// lookupField resolves one raw column name against the synonym table.
func lookupField(column string) (model.CanonicalField, bool) {
	key := normalizeKey(column)
	if key == "" {
		return "", false
	}
	for field, names := range synonyms {
		for _, name := range names {
			if key == name {
				return field, true
			}
		}
	}
	return "", false
}

// Normalize resolves a table's columns to canonical fields for the given
// import mode.
//
// Two distinct columns mapping to the same canonical field is an ambiguous
// mapping error, unless the columns carry identical values on every row, in
// which case the first is kept as a plain duplicate. Columns with no
// synonym are left unmapped. A required field with no mapped column fails
// with an *Error naming the field.
func Normalize(t model.Table, mode Mode) (Mapping, error) {
	byField := make(map[model.CanonicalField][]string)
	byColumn := make(map[string]model.CanonicalField)

	for _, col := range t.Headers {
		field, ok := lookupField(col)
		if !ok {
			continue
		}
		byField[field] = append(byField[field], col)
	}

	for field, cols := range byField {
		if len(cols) > 1 && !identicalColumns(t, cols) {
			return Mapping{}, &Error{
				Mode:    mode,
				Field:   field,
				Columns: cols,
				Reason:  "ambiguous mapping: multiple columns match",
			}
		}
		byColumn[cols[0]] = field
	}

	for _, field := range requiredFields[mode] {
		if len(byField[field]) == 0 {
			return Mapping{}, &Error{
				Mode:   mode,
				Field:  field,
				Reason: "no input column maps to required field",
			}
		}
	}

	return Mapping{mode: mode, byColumn: byColumn}, nil
}

// identicalColumns reports whether the named columns hold the same value on
// every row, making all but the first safe to ignore.
func identicalColumns(t model.Table, cols []string) bool {
	for _, row := range t.Rows {
		var first string
		var seen bool
		for _, cell := range row {
			for _, col := range cols {
				if cell.Column != col {
					continue
				}
				if !seen {
					first = cell.Value
					seen = true
				} else if cell.Value != first {
					return false
				}
			}
		}
	}
	return true
}

// Apply converts one raw row into a normalized record. Numeric fields are
// cleaned of currency formatting; a non-blank value that still fails to
// parse is a row-level error carrying the 1-based row number. Blank numeric
// values normalize to "0", matching the upstream feeds' convention of
// omitting zero balances.
func (m Mapping) Apply(rec model.RawRecord, row int) (model.NormalizedRecord, error) {
	fields := make(map[model.CanonicalField]string)
	for _, cell := range rec {
		field, ok := m.byColumn[cell.Column]
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell.Value)
		if numericFields[field] {
			cleaned, err := CleanNumber(value)
			if err != nil {
				return model.NormalizedRecord{}, fmt.Errorf("row %d: column %q: %w", row, cell.Column, err)
			}
			value = cleaned
		}
		fields[field] = value
	}
	return model.NormalizedRecord{Fields: fields, Row: row}, nil
}

// ApplyAll normalizes every row of a table.
func (m Mapping) ApplyAll(t model.Table) ([]model.NormalizedRecord, error) {
	records := make([]model.NormalizedRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		rec, err := m.Apply(row, i+1)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CleanNumber strips currency formatting ("$", ",", spaces) and verifies
// the remainder parses as a number. Blank input cleans to "0".
func CleanNumber(raw string) (string, error) {
	cleaned := strings.Map(func(c rune) rune {
		switch c {
		case '$', ',', ' ':
			return -1
		}
		return c
	}, raw)

	if cleaned == "" {
		return "0", nil
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return "", fmt.Errorf("value %q is not numeric", raw)
	}
	return cleaned, nil
}

// ParseNumber returns the numeric value of an already-cleaned field,
// treating blank as zero.
func ParseNumber(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
