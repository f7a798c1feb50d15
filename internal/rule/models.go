package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/acted/rules-engine/pkg/value"
)

// Rule represents a declarative business rule bound to an entry point.
// A published version is immutable: edits publish a new version and retiring
// publishes a version with Active cleared.
type Rule struct {
	Code           string      `json:"rule_code"`
	Name           string      `json:"name"`
	EntryPoint     string      `json:"entry_point"`
	FieldsCode     string      `json:"rules_fields_code,omitempty"`
	Priority       int         `json:"priority"`
	Active         bool        `json:"active"`
	StopProcessing bool        `json:"stop_processing"`
	Version        int64       `json:"version"`
	Condition      value.Value `json:"condition"`
	Actions        ActionList  `json:"actions"`
}

// IsValid checks if a rule definition is valid and has no missing mandatory fields
func (r *Rule) IsValid() (bool, error) {
	if r.Code == "" {
		return false, errors.New("missing rule_code")
	}
	if r.Name == "" {
		return false, errors.New("missing name")
	}
	if r.EntryPoint == "" {
		return false, errors.New("missing entry_point")
	}
	if r.Condition.IsMissing() {
		return false, errors.New("missing condition")
	}
	for i, action := range r.Actions {
		if action == nil {
			return false, fmt.Errorf("action %d is empty", i)
		}
		if err := action.Validate(); err != nil {
			return false, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return true, nil
}

// SameDefinitionAs returns true if both rules carry the same definition, regardless of version
func (r *Rule) SameDefinitionAs(other Rule) bool {
	a, b := *r, other
	a.Version, b.Version = 0, 0
	aData, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bData, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aData, bData)
}

// Clone returns a deep copy of the rule
func (r Rule) Clone() Rule {
	out := r
	out.Condition = r.Condition.Clone()
	out.Actions = make(ActionList, len(r.Actions))
	for i, action := range r.Actions {
		if u, ok := action.(Update); ok {
			u.Value = u.Value.Clone()
			u.Parameters = u.Parameters.Clone()
			action = u
		}
		out.Actions[i] = action
	}
	return out
}

// Less orders rules by priority ascending, then by rule code
func Less(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Code < b.Code
}

// Sort orders rules in execution order
func Sort(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return Less(rules[i], rules[j])
	})
}
