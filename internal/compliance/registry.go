// Package compliance gates outbound communications behind a fixed,
// auditable rule set. Templates come from a closed registry: compliance
// depends on institutional review of wording, not just absence of banned
// tokens, so ad-hoc message bodies are rejected outright.
package compliance

import (
	"fmt"
	"sort"

	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/model"
)

// Registry is the closed list of pre-approved communication templates.
type Registry struct {
	templates map[string]model.Template
}

// NewRegistry returns a registry seeded with the stock intervention
// templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]model.Template)}
	for _, t := range builtinTemplates {
		r.templates[t.ID] = t
	}
	return r
}

// Register adds or replaces a template. Registration is the institutional
// review step; the validator trusts whatever the registry holds.
func (r *Registry) Register(t model.Template) error {
	if t.ID == "" {
		return fmt.Errorf("template ID is required")
	}
	if t.Body == "" {
		return fmt.Errorf("template %q: body is required", t.ID)
	}
	r.templates[t.ID] = t
	return nil
}

// Get returns an approved template by ID.
func (r *Registry) Get(id string) (model.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return model.Template{}, fmt.Errorf("template %q: %w", id, common.ErrNotFound)
	}
	return t, nil
}

// IDs returns the approved template identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// builtinTemplates are the institution-reviewed stock messages. Bodies use
// Go template placeholders over canonical field names and the request's
// fill variables.
var builtinTemplates = []model.Template{
	{
		ID:      "early_intervention",
		Subject: "Proactive Financial Support Available",
		Body: `Dear {{.first_name}} {{.last_name}},

We want to connect you with financial planning resources to support your continued success.

Current Information:
- Academic Program: {{.major}}
- Outstanding Balance: ${{.outstanding_balance}}

Available Support:
- Financial planning consultation
- Repayment plan options
- Career services connection

Contact us: (555) 123-4567
Email: finaid@yourschool.edu

Financial Aid Office`,
		AllowedFields: []model.CanonicalField{
			model.FieldFirstName,
			model.FieldLastName,
			model.FieldMajor,
			model.FieldOutstandingBalance,
		},
	},
	{
		ID:      "urgent_intervention",
		Subject: "Important Financial Support Available",
		Body: `Dear {{.first_name}} {{.last_name}},

Immediate financial support resources are available to help your situation.

Account Status:
- Outstanding Balance: ${{.outstanding_balance}}
- Days Past Due: {{.days_delinquent}}

Immediate Options:
- Emergency financial counseling
- Payment plan restructuring
- Income-driven repayment

Please contact us within 48 hours:
Phone: (555) 123-4567

Financial Aid Office`,
		AllowedFields: []model.CanonicalField{
			model.FieldFirstName,
			model.FieldLastName,
			model.FieldOutstandingBalance,
			model.FieldDaysDelinquent,
		},
	},
}
