package compliance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/charted-solutions/loanrisk/internal/model"
)

// Rule identifiers, in evaluation order.
const (
	RuleTemplateNotApproved = "template_not_approved"
	RuleFieldNotPermitted   = "field_not_permitted"
	RuleForbiddenContent    = "forbidden_content"
	RuleInvalidEmail        = "invalid_recipient_email"
	RuleBulkAckRequired     = "bulk_ack_required"
	RuleRenderFailed        = "template_render_failed"
)

// Config holds the validation knobs.
type Config struct {
	// ForbiddenTokens are field tokens that must never appear in a
	// rendered message body.
	ForbiddenTokens []string

	// BulkThreshold is the recipient count above which a send requires an
	// explicit acknowledgment flag.
	BulkThreshold int
}

// DefaultConfig returns the documented defaults: forbidden tokens ssn, gpa
// and account_number, bulk threshold 500.
func DefaultConfig() Config {
	return Config{
		ForbiddenTokens: []string{"ssn", "gpa", "account_number"},
		BulkThreshold:   500,
	}
}

// Validator evaluates communication requests against the rule set. It has
// no side effects; it only decides.
type Validator struct {
	registry *Registry
	cfg      Config
}

// NewValidator creates a validator over an approved-template registry.
func NewValidator(registry *Registry, cfg Config) *Validator {
	return &Validator{registry: registry, cfg: cfg}
}

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	ssnDashedPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ssnDigitsPattern = regexp.MustCompile(`\b\d{9}\b`)
	placeholderRef   = regexp.MustCompile(`\{\{\s*\.([A-Za-z_][A-Za-z0-9_]*)`)
)

// Validate evaluates every rule and reports all triggered violations
// together, never just the first: callers need the complete picture to fix
// a request in one pass. The verdict is allow only when zero rules trigger.
func (v *Validator) Validate(req model.CommunicationRequest) model.ValidationVerdict {
	var violations []model.Violation

	tmpl, err := v.registry.Get(req.TemplateID)
	approved := err == nil
	if !approved {
		violations = append(violations, model.Violation{
			RuleID: RuleTemplateNotApproved,
			Reason: fmt.Sprintf("template %q is not in the approved template registry", req.TemplateID),
		})
	}

	// Rules that read the template body only run against an approved one;
	// there is no body to inspect otherwise.
	if approved {
		if viol, ok := v.checkPermittedFields(tmpl); ok {
			violations = append(violations, viol)
		}
		violations = append(violations, v.checkRenderedContent(tmpl, req)...)
	}

	if viol, ok := v.checkRecipientEmails(req); ok {
		violations = append(violations, viol)
	}

	if len(req.Recipients) > v.cfg.BulkThreshold && !req.BulkAcknowledged {
		violations = append(violations, model.Violation{
			RuleID: RuleBulkAckRequired,
			Reason: fmt.Sprintf("bulk send to %d recipients exceeds the threshold of %d and requires explicit acknowledgment",
				len(req.Recipients), v.cfg.BulkThreshold),
		})
	}

	return model.ValidationVerdict{
		Allowed:    len(violations) == 0,
		Violations: violations,
	}
}

// checkPermittedFields verifies the template body references only the
// canonical fields its registry entry permits.
func (v *Validator) checkPermittedFields(tmpl model.Template) (model.Violation, bool) {
	var offending []string
	seen := make(map[string]bool)

	for _, match := range placeholderRef.FindAllStringSubmatch(tmpl.Body, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		field := model.CanonicalField(name)
		if !isCanonical(field) {
			continue // plain fill variable, not borrower data
		}
		if !tmpl.PermitsField(field) {
			offending = append(offending, name)
		}
	}

	if len(offending) == 0 {
		return model.Violation{}, false
	}
	return model.Violation{
		RuleID: RuleFieldNotPermitted,
		Reason: fmt.Sprintf("template %q references fields outside its permitted list: %s",
			tmpl.ID, strings.Join(offending, ", ")),
	}, true
}

// checkRenderedContent renders the template with each recipient's actual
// data and scans the rendered text. Scanning the template alone is not
// enough: a body can be safe in isolation but unsafe once variables are
// substituted.
func (v *Validator) checkRenderedContent(tmpl model.Template, req model.CommunicationRequest) []model.Violation {
	parsed, err := template.New(tmpl.ID).Option("missingkey=zero").Parse(tmpl.Body)
	if err != nil {
		return []model.Violation{{
			RuleID: RuleRenderFailed,
			Reason: fmt.Sprintf("template %q does not parse: %v", tmpl.ID, err),
		}}
	}

	hits := make(map[string]bool)
	for _, recipient := range req.Recipients {
		var rendered strings.Builder
		if err := parsed.Execute(&rendered, renderData(recipient, req.Variables)); err != nil {
			return []model.Violation{{
				RuleID: RuleRenderFailed,
				Reason: fmt.Sprintf("template %q failed to render: %v", tmpl.ID, err),
			}}
		}
		for _, token := range v.scanRendered(rendered.String(), recipient) {
			hits[token] = true
		}
	}

	if len(hits) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(hits))
	for _, token := range v.cfg.ForbiddenTokens {
		if hits[token] {
			tokens = append(tokens, token)
		}
	}
	return []model.Violation{{
		RuleID: RuleForbiddenContent,
		Reason: fmt.Sprintf("rendered message contains forbidden content: %s", strings.Join(tokens, ", ")),
	}}
}

// scanRendered returns the forbidden tokens found in one rendered body.
func (v *Validator) scanRendered(rendered string, recipient model.ScoredProfile) []string {
	lowered := strings.ToLower(rendered)

	var found []string
	for _, token := range v.cfg.ForbiddenTokens {
		if tokenPattern(token).MatchString(lowered) {
			found = append(found, token)
			continue
		}
		if token == "ssn" && containsSSN(rendered, recipient.Profile.SSN) {
			found = append(found, token)
		}
	}
	return found
}

// containsSSN reports whether the rendered text carries an SSN-shaped value
// or the recipient's own SSN in any common formatting.
func containsSSN(rendered, recipientSSN string) bool {
	if ssnDashedPattern.MatchString(rendered) || ssnDigitsPattern.MatchString(rendered) {
		return true
	}
	if recipientSSN == "" {
		return false
	}
	dashed := recipientSSN[:3] + "-" + recipientSSN[3:5] + "-" + recipientSSN[5:]
	return strings.Contains(rendered, recipientSSN) || strings.Contains(rendered, dashed)
}

// tokenPattern builds a word-bounded matcher for a forbidden token,
// accepting space or underscore between its words.
func tokenPattern(token string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(strings.ToLower(token))
	escaped = strings.ReplaceAll(escaped, "_", `[ _]`)
	return regexp.MustCompile(`\b` + escaped + `\b`)
}

// checkRecipientEmails verifies every recipient has a well-formed address.
func (v *Validator) checkRecipientEmails(req model.CommunicationRequest) (model.Violation, bool) {
	var bad []string
	for _, r := range req.Recipients {
		email := strings.TrimSpace(r.Profile.Email)
		if email == "" || !emailPattern.MatchString(email) {
			bad = append(bad, r.Profile.DisplayName())
		}
	}
	if len(bad) == 0 {
		return model.Violation{}, false
	}

	example := bad[0]
	return model.Violation{
		RuleID: RuleInvalidEmail,
		Reason: fmt.Sprintf("%d recipient(s) have a missing or malformed email address (first: %s)",
			len(bad), example),
	}, true
}

// renderData builds the substitution data for one recipient: the request's
// fill variables overlaid with the recipient's actual field values. Profile
// data wins so a variable can never mask what would really be sent.
func renderData(recipient model.ScoredProfile, variables map[string]string) map[string]string {
	data := make(map[string]string, len(variables)+len(model.CanonicalFields))
	for k, val := range variables {
		data[k] = val
	}

	p := recipient.Profile
	data[string(model.FieldFirstName)] = p.FirstName
	data[string(model.FieldLastName)] = p.LastName
	data[string(model.FieldEmail)] = p.Email
	data[string(model.FieldSSN)] = p.SSN
	data[string(model.FieldStudentID)] = p.StudentID
	data[string(model.FieldLoanType)] = p.LoanType
	data[string(model.FieldMajor)] = p.Major
	data[string(model.FieldEnrollmentStatus)] = p.EnrollmentStatus
	data[string(model.FieldDaysDelinquent)] = formatNumber(p.DaysDelinquent)
	data[string(model.FieldOutstandingBalance)] = formatNumber(p.OutstandingBalance)
	return data
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isCanonical(f model.CanonicalField) bool {
	for _, c := range model.CanonicalFields {
		if c == f {
			return true
		}
	}
	return false
}

// Render produces the final (recipient, rendered body) pairs for delivery.
// Callers must only invoke this after an allow verdict; the core never
// calls the delivery sink itself.
func (v *Validator) Render(req model.CommunicationRequest) (map[string]string, error) {
	tmpl, err := v.registry.Get(req.TemplateID)
	if err != nil {
		return nil, err
	}
	parsed, err := template.New(tmpl.ID).Option("missingkey=zero").Parse(tmpl.Body)
	if err != nil {
		return nil, fmt.Errorf("template %q does not parse: %w", tmpl.ID, err)
	}

	out := make(map[string]string, len(req.Recipients))
	for _, recipient := range req.Recipients {
		var body strings.Builder
		if err := parsed.Execute(&body, renderData(recipient, req.Variables)); err != nil {
			return nil, fmt.Errorf("template %q failed to render: %w", tmpl.ID, err)
		}
		out[recipient.Profile.Email] = body.String()
	}
	return out, nil
}
