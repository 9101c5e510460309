package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSSN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare digits", input: "123456789", want: "123456789"},
		{name: "dashed", input: "123-45-6789", want: "123456789"},
		{name: "spaces and dashes", input: " 123-45-6789 ", want: "123456789"},
		{name: "too short", input: "12345678", want: ""},
		{name: "too long", input: "1234567890", want: ""},
		{name: "masked", input: "***-**-6789", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSSN(tt.input))
		})
	}
}

func TestNormalizedStudentID(t *testing.T) {
	rec := NormalizedRecord{Fields: map[CanonicalField]string{
		FieldStudentID: "  STU100000 ",
	}}
	assert.Equal(t, "stu100000", rec.NormalizedStudentID())

	empty := NormalizedRecord{}
	assert.Equal(t, "", empty.NormalizedStudentID())
}

func TestUnifiedProfile_DisplayName(t *testing.T) {
	p := UnifiedProfile{FirstName: "James", LastName: "Smith"}
	assert.Equal(t, "James Smith", p.DisplayName())

	lastOnly := UnifiedProfile{LastName: "Smith"}
	assert.Equal(t, "Smith", lastOnly.DisplayName())

	nameless := UnifiedProfile{Key: BorrowerKey{Kind: KeyStudentID, Value: "stu42"}}
	assert.Equal(t, "student_id:stu42", nameless.DisplayName())
}

func TestRiskTier_AtLeast(t *testing.T) {
	assert.True(t, TierCritical.AtLeast(TierHigh))
	assert.True(t, TierHigh.AtLeast(TierHigh))
	assert.False(t, TierMedium.AtLeast(TierHigh))
	assert.False(t, RiskTier("bogus").AtLeast(TierLow))
}

func TestLinkResult_Matched(t *testing.T) {
	r := LinkResult{Profiles: []UnifiedProfile{
		{Provenance: ProvenanceMatched},
		{Provenance: ProvenanceNSLDSOnly},
		{Provenance: ProvenanceMatched},
		{Provenance: ProvenanceSISOnly},
	}}
	assert.Equal(t, 2, r.Matched())
}
