package compliance

import (
	"testing"

	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recipient(email string) model.ScoredProfile {
	return model.ScoredProfile{
		Profile: model.UnifiedProfile{
			Key:                model.BorrowerKey{Kind: model.KeySSN, Value: "123456789"},
			FirstName:          "James",
			LastName:           "Smith",
			Email:              email,
			SSN:                "123456789",
			Major:              "Nursing",
			DaysDelinquent:     95,
			OutstandingBalance: 8000,
			HasDelinquency:     true,
			Provenance:         model.ProvenanceMatched,
		},
		Score: 0.55,
		Tier:  model.TierHigh,
	}
}

func newValidator(t *testing.T) (*Validator, *Registry) {
	t.Helper()
	reg := NewRegistry()
	return NewValidator(reg, DefaultConfig()), reg
}

func TestValidate_AllowsCleanRequest(t *testing.T) {
	v, _ := newValidator(t)

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "early_intervention",
		Recipients: []model.ScoredProfile{recipient("james.smith@email.com")},
	})

	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Violations)
}

func TestValidate_UnapprovedTemplateRejected(t *testing.T) {
	v, _ := newValidator(t)

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "my_adhoc_message",
		Recipients: []model.ScoredProfile{recipient("a@b.edu")},
	})

	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.RuleIDs(), RuleTemplateNotApproved)
}

func TestValidate_RenderedSSNDenied(t *testing.T) {
	// The template text contains no forbidden token literally; its only
	// placeholder resolves to the recipient's SSN. Denial proves the check
	// runs on rendered output, not raw template text.
	v, reg := newValidator(t)
	require.NoError(t, reg.Register(model.Template{
		ID:            "verification_notice",
		Subject:       "Records Verification",
		Body:          "Dear {{.first_name}}, please verify the identifier {{.ssn}} on file.",
		AllowedFields: []model.CanonicalField{model.FieldFirstName, model.FieldSSN},
	}))

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "verification_notice",
		Recipients: []model.ScoredProfile{recipient("a@b.edu")},
	})

	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.RuleIDs(), RuleForbiddenContent)
	assert.NotContains(t, verdict.RuleIDs(), RuleFieldNotPermitted)
}

func TestValidate_FieldOutsidePermittedList(t *testing.T) {
	v, reg := newValidator(t)
	require.NoError(t, reg.Register(model.Template{
		ID:            "narrow",
		Body:          "Hello {{.first_name}}, your program is {{.major}}.",
		AllowedFields: []model.CanonicalField{model.FieldFirstName},
	}))

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "narrow",
		Recipients: []model.ScoredProfile{recipient("a@b.edu")},
	})

	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.RuleIDs(), RuleFieldNotPermitted)
}

func TestValidate_InvalidRecipientEmail(t *testing.T) {
	v, _ := newValidator(t)

	tests := []string{"", "not-an-email", "missing@tld", "two@@signs.edu"}
	for _, email := range tests {
		verdict := v.Validate(model.CommunicationRequest{
			TemplateID: "early_intervention",
			Recipients: []model.ScoredProfile{recipient(email)},
		})
		assert.Contains(t, verdict.RuleIDs(), RuleInvalidEmail, "email %q", email)
	}
}

func TestValidate_BulkAckRequired(t *testing.T) {
	v, _ := newValidator(t)

	recipients := make([]model.ScoredProfile, 600)
	for i := range recipients {
		recipients[i] = recipient("borrower@school.edu")
	}

	req := model.CommunicationRequest{
		TemplateID: "early_intervention",
		Recipients: recipients,
	}

	verdict := v.Validate(req)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.RuleIDs(), RuleBulkAckRequired)

	// Same request with the acknowledgment flag set is allowed.
	req.BulkAcknowledged = true
	verdict = v.Validate(req)
	assert.True(t, verdict.Allowed, "violations: %v", verdict.Violations)
}

func TestValidate_AllViolationsReportedTogether(t *testing.T) {
	// Two independent rules: bulk without acknowledgment and a bad email.
	v, _ := newValidator(t)

	recipients := make([]model.ScoredProfile, 501)
	for i := range recipients {
		recipients[i] = recipient("borrower@school.edu")
	}
	recipients[17] = recipient("broken-address")

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "early_intervention",
		Recipients: recipients,
	})

	assert.False(t, verdict.Allowed)
	ids := verdict.RuleIDs()
	assert.Contains(t, ids, RuleBulkAckRequired)
	assert.Contains(t, ids, RuleInvalidEmail)
}

func TestValidate_VariableCannotMaskProfileData(t *testing.T) {
	v, reg := newValidator(t)
	require.NoError(t, reg.Register(model.Template{
		ID:            "masked",
		Body:          "Ref: {{.ssn}}",
		AllowedFields: []model.CanonicalField{model.FieldSSN},
	}))

	verdict := v.Validate(model.CommunicationRequest{
		TemplateID: "masked",
		Recipients: []model.ScoredProfile{recipient("a@b.edu")},
		Variables:  map[string]string{"ssn": "REDACTED"},
	})

	assert.False(t, verdict.Allowed, "profile data must win over fill variables")
	assert.Contains(t, verdict.RuleIDs(), RuleForbiddenContent)
}

func TestValidate_NoSideEffects(t *testing.T) {
	v, _ := newValidator(t)

	req := model.CommunicationRequest{
		TemplateID: "early_intervention",
		Recipients: []model.ScoredProfile{recipient("a@b.edu")},
	}

	first := v.Validate(req)
	second := v.Validate(req)
	assert.Equal(t, first, second)
}

func TestRegistry_IDs(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"early_intervention", "urgent_intervention"}, reg.IDs())
}

func TestRender_ProducesRecipientBodies(t *testing.T) {
	v, _ := newValidator(t)

	bodies, err := v.Render(model.CommunicationRequest{
		TemplateID: "early_intervention",
		Recipients: []model.ScoredProfile{recipient("james.smith@email.com")},
	})
	require.NoError(t, err)

	body := bodies["james.smith@email.com"]
	assert.Contains(t, body, "Dear James Smith")
	assert.Contains(t, body, "Nursing")
	assert.Contains(t, body, "$8000")
	assert.NotContains(t, body, "123456789")
}

func TestTokenPattern_WordBoundaries(t *testing.T) {
	assert.True(t, tokenPattern("gpa").MatchString("your gpa is low"))
	assert.False(t, tokenPattern("gpa").MatchString("the gpalike metric"))
	assert.True(t, tokenPattern("account_number").MatchString("your account number here"))
	assert.True(t, tokenPattern("account_number").MatchString("account_number"))
}
