package triage

import (
	"slices"
	"strings"
)

// Rule is one clinic-authored triage condition. Field names are the JSON/YAML
// contract shared with the forms editor.
type Rule struct {
	Field      string   `json:"field" yaml:"field"`
	Operator   Operator `json:"operator" yaml:"operator"`
	Operand    any      `json:"operand" yaml:"operand"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Wellformed reports whether the rule names a field and a canonical operator.
// Evaluate skips rules that are not.
func (r *Rule) Wellformed() bool {
	return strings.TrimSpace(r.Field) != "" && r.Operator.Valid()
}

// Dataset is a flat field -> scalar mapping of a patient's answers.
type Dataset map[string]any

// Suggestion is an action proposed to the care team.
type Suggestion struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Evaluation is the outcome of running a rule list over a dataset.
type Evaluation struct {
	Severity    Severity     `json:"severity"`
	Suggestions []Suggestion `json:"suggestions"`
	Matched     int          `json:"matched_rules"`
}

// Evaluate folds rules over data in input order. The result severity is the
// highest severity of any matching rule (green when none match); suggestions
// are deduplicated by trimmed text, first occurrence wins, and ordered red,
// yellow, green with ties kept in rule order. Malformed rules and absent
// fields are skipped; Evaluate never fails. Fields are looked up by their exact
// authored key.
func Evaluate(rules []Rule, data Dataset) Evaluation {
	out := Evaluation{Severity: SeverityGreen, Suggestions: []Suggestion{}}
	seen := make(map[string]struct{})

	for i := range rules {
		r := &rules[i]
		if !r.Wellformed() {
			continue
		}
		value, ok := data[r.Field]
		if !ok || !present(value) {
			continue
		}
		if !Matches(value, r.Operator, r.Operand) {
			continue
		}

		out.Matched++
		sev := r.Severity.Normalize()
		out.Severity = MaxSeverity(out.Severity, sev)

		text := strings.TrimSpace(r.Suggestion)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out.Suggestions = append(out.Suggestions, Suggestion{Text: text, Severity: sev})
	}

	slices.SortStableFunc(out.Suggestions, func(a, b Suggestion) int {
		return Compare(b.Severity, a.Severity)
	})
	return out
}

// MergeDataset combines structured form answers with clinic custom fields.
// Answers win when both carry the same key.
func MergeDataset(answers, custom map[string]any) Dataset {
	out := make(Dataset, len(answers)+len(custom))
	for k, v := range custom {
		out[k] = v
	}
	for k, v := range answers {
		out[k] = v
	}
	return out
}

// present is false for nil, empty and whitespace-only strings.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	}
	return true
}
