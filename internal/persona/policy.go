package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// Limits bound what a custom personality may contain.
type Limits struct {
	MaxInstruction int `yaml:"max_instruction"`
	MaxStarters    int `yaml:"max_starters"`
	MaxCustom      int `yaml:"max_custom"`
}

// DefaultLimits are used when no limits are configured.
var DefaultLimits = Limits{MaxInstruction: 8000, MaxStarters: 6, MaxCustom: 50}

// PolicyError lists why a personality was refused.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "persona rejected: " + strings.Join(e.Reasons, "; ")
}

// Policy is the OPA admission policy for new personalities.
type Policy struct {
	query  rego.PreparedEvalQuery
	limits Limits
}

// NewPolicy prepares the admission policy. An empty policyContent uses
// DefaultPolicy.
func NewPolicy(ctx context.Context, policyContent string, limits Limits) (*Policy, error) {
	if policyContent == "" {
		policyContent = DefaultPolicy
	}
	r := rego.New(
		rego.Query("data.persona_admission.deny"),
		rego.Module("persona_admission.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Policy{query: query, limits: limits}, nil
}

// Admit checks p against the current personality list. It returns a
// *PolicyError when any rule denies.
func (p *Policy) Admit(ctx context.Context, candidate domain.Personality, existing []domain.Personality) error {
	var builtinIDs, existingIDs []interface{}
	customCount := 0
	for _, e := range existing {
		existingIDs = append(existingIDs, e.ID)
		if !IsBuiltin(e.ID) {
			customCount++
		}
	}
	for _, d := range defaults {
		builtinIDs = append(builtinIDs, d.ID)
	}
	starters := make([]interface{}, 0, len(candidate.Starters))
	for _, s := range candidate.Starters {
		starters = append(starters, s)
	}

	input := map[string]interface{}{
		"persona": map[string]interface{}{
			"id":                 candidate.ID,
			"name":               candidate.Name,
			"model":              candidate.Model,
			"system_instruction": candidate.SystemInstruction,
			"starters":           starters,
		},
		"builtin_ids":  builtinIDs,
		"existing_ids": existingIDs,
		"custom_count": customCount,
		"limits": map[string]interface{}{
			"max_instruction": p.limits.MaxInstruction,
			"max_starters":    p.limits.MaxStarters,
			"max_custom":      p.limits.MaxCustom,
		},
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil
	}

	set, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(set) == 0 {
		return nil
	}
	reasons := make([]string, 0, len(set))
	for _, v := range set {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		}
	}
	sort.Strings(reasons)
	return &PolicyError{Reasons: reasons}
}

// DefaultPolicy is the default admission policy.
const DefaultPolicy = `
package persona_admission

valid_models = {"gemini-3-flash-preview", "gemini-3-pro-preview"}

reserved {
	input.builtin_ids[_] == input.persona.id
}

taken {
	input.existing_ids[_] == input.persona.id
}

deny[msg] {
	trim_space(input.persona.name) == ""
	msg := "name is required"
}

deny[msg] {
	reserved
	msg := sprintf("id %q is reserved by a built-in persona", [input.persona.id])
}

deny[msg] {
	not reserved
	taken
	msg := sprintf("id %q already exists", [input.persona.id])
}

deny[msg] {
	not valid_models[input.persona.model]
	msg := sprintf("unsupported model %q", [input.persona.model])
}

deny[msg] {
	count(input.persona.system_instruction) > input.limits.max_instruction
	msg := "system instruction is too long"
}

deny[msg] {
	count(input.persona.starters) > input.limits.max_starters
	msg := "too many conversation starters"
}

deny[msg] {
	input.custom_count >= input.limits.max_custom
	msg := "custom persona limit reached"
}
`
