package rule

import (
	"fmt"
	"strings"

	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/predicate"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/acted/rules-engine/pkg/value"
)

// ValidationError lists every problem found on a rule at save time
type ValidationError struct {
	Code     string   `json:"rule_code"`
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s is invalid: %s", e.Code, strings.Join(e.Problems, "; "))
}

// Validator checks that a rule only references things that resolve:
// its schema, its templates, its functions and the context fields it reads or writes.
type Validator struct {
	Schemas   schema.Repository
	Templates messagetemplate.Repository
	Functions *function.Registry
}

// Validate returns a *ValidationError when the rule cannot be saved
func (v Validator) Validate(r Rule) error {
	verr := &ValidationError{Code: r.Code}
	add := func(format string, args ...interface{}) {
		verr.Problems = append(verr.Problems, fmt.Sprintf(format, args...))
	}

	if ok, err := r.IsValid(); !ok {
		add("%s", err)
		return verr
	}
	if err := predicate.Check(r.Condition); err != nil {
		add("condition: %s", err)
	}

	var declared *schema.Schema
	if r.FieldsCode != "" {
		s, found, err := v.Schemas.Get(r.FieldsCode)
		switch {
		case err != nil:
			add("schema %s: %s", r.FieldsCode, err)
		case !found:
			add("%s: %s", schema.ErrUnknownSchema, r.FieldsCode)
		default:
			declared = &s
		}
	}

	paths := predicate.Vars(r.Condition)
	for i, action := range r.Actions {
		switch a := action.(type) {
		case DisplayMessage:
			v.checkTemplate(i, a.TemplateName, add)
		case DisplayModal:
			v.checkTemplate(i, a.TemplateName, add)
		case UserAcknowledge:
			if a.TemplateName != "" {
				v.checkTemplate(i, a.TemplateName, add)
			}
		case UserPreference:
			if a.TemplateName != "" {
				v.checkTemplate(i, a.TemplateName, add)
			}
		case Update:
			paths = append(paths, a.Target)
			paths = append(paths, predicate.Vars(a.Value)...)
			paths = append(paths, parameterVars(a.Parameters)...)
			if a.Operation == OperationFunction && (v.Functions == nil || !v.Functions.Has(a.FunctionID)) {
				add("action %d: %s: %s", i, function.ErrUnknownFunction, a.FunctionID)
			}
			if a.Operation == OperationFunction && v.Functions != nil {
				v.checkArity(i, a, add)
			}
		}
	}

	if declared != nil {
		seen := make(map[string]struct{})
		for _, p := range paths {
			if _, done := seen[p]; done {
				continue
			}
			seen[p] = struct{}{}
			if !declared.Declares(p) {
				add("field %s is not declared by schema %s", p, declared.Code)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func (v Validator) checkTemplate(i int, name string, add func(string, ...interface{})) {
	if v.Templates == nil {
		add("action %d: %s: %s", i, messagetemplate.ErrTemplateNotFound, name)
		return
	}
	_, found, err := v.Templates.Get(name)
	if err != nil {
		add("action %d: template %s: %s", i, name, err)
		return
	}
	if !found {
		add("action %d: %s: %s", i, messagetemplate.ErrTemplateNotFound, name)
	}
}

func (v Validator) checkArity(i int, a Update, add func(string, ...interface{})) {
	f, ok := v.Functions.Lookup(a.FunctionID)
	if !ok {
		return
	}
	switch a.Parameters.Kind() {
	case value.KindObject:
		params, _ := a.Parameters.Object()
		for _, p := range f.Params {
			if _, ok := params[p]; !ok {
				add("action %d: %s is missing parameter %s", i, a.FunctionID, p)
			}
		}
		if len(params) != f.Arity() {
			add("action %d: %s takes %d parameters, got %d", i, a.FunctionID, f.Arity(), len(params))
		}
	case value.KindArray:
		params, _ := a.Parameters.Array()
		if len(params) != f.Arity() {
			add("action %d: %s takes %d parameters, got %d", i, a.FunctionID, f.Arity(), len(params))
		}
	default:
		if f.Arity() != 0 {
			add("action %d: %s takes %d parameters, got none", i, a.FunctionID, f.Arity())
		}
	}
}

func parameterVars(params value.Value) []string {
	var paths []string
	if fields, ok := params.Object(); ok {
		for _, node := range fields {
			paths = append(paths, predicate.Vars(node)...)
		}
	}
	if items, ok := params.Array(); ok {
		for _, node := range items {
			paths = append(paths, predicate.Vars(node)...)
		}
	}
	return paths
}
