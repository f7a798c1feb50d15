package schema

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrUnknownSchema is returned when no active schema exists for a code
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrInvalidSchema is returned when a schema document cannot be compiled
	ErrInvalidSchema = errors.New("invalid schema document")
	// ErrConcurrentVersion is returned when another writer created the same schema version first
	ErrConcurrentVersion = errors.New("concurrent schema version")
)

// Schema is a versioned JSON Schema document constraining a rule context
type Schema struct {
	Code     string      `json:"fields_code"`
	Version  int64       `json:"version"`
	Active   bool        `json:"active"`
	Document value.Value `json:"schema"`
}

// IsValid checks if a schema definition is valid and has no missing mandatory fields
func (s Schema) IsValid() (bool, error) {
	if s.Code == "" {
		return false, errors.New("missing fields_code")
	}
	if s.Document.Kind() != value.KindObject {
		return false, errors.New("missing schema document")
	}
	return true, nil
}

// Violation is a single schema mismatch
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every violation found while validating a context
type ValidationError struct {
	Code       string      `json:"fields_code"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Path, v.Message))
	}
	return fmt.Sprintf("context does not match schema %s: %s", e.Code, strings.Join(parts, "; "))
}

// Compiled is a schema ready to validate contexts. It is immutable and safe for concurrent use.
type Compiled struct {
	Schema
	compiled *jsonschema.Schema
}

// Compile compiles the schema document
func Compile(s Schema) (*Compiled, error) {
	if ok, err := s.IsValid(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchema, err)
	}
	doc, err := s.Document.MarshalJSON()
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("mem://schemas/%s/%d.json", s.Code, s.Version)
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSchema, s.Code, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSchema, s.Code, err)
	}
	return &Compiled{Schema: s, compiled: compiled}, nil
}

// Validate returns a *ValidationError when ctx does not match the schema
func (c *Compiled) Validate(ctx value.Value) error {
	err := c.compiled.Validate(ctx.Interface())
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &ValidationError{Code: c.Code}
	collectViolations(verr, out)
	sort.SliceStable(out.Violations, func(i, j int) bool {
		return out.Violations[i].Path < out.Violations[j].Path
	})
	return out
}

// collectViolations keeps the leaves of the error tree, which carry the precise reasons
func collectViolations(verr *jsonschema.ValidationError, out *ValidationError) {
	if len(verr.Causes) == 0 {
		path := verr.InstanceLocation
		if path == "" {
			path = "/"
		}
		out.Violations = append(out.Violations, Violation{Path: path, Message: verr.Message})
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, out)
	}
}

// Declares reports whether a dotted context path is declared by the schema properties.
// Numeric segments walk into "items".
func (s Schema) Declares(path string) bool {
	cur := s.Document
	for _, seg := range value.SplitPath(path) {
		if props, ok := cur.Get("properties").Object(); ok {
			if next, found := props[seg]; found {
				cur = next
				continue
			}
		}
		if _, err := strconv.Atoi(seg); err == nil {
			if items := cur.Get("items"); items.Kind() == value.KindObject {
				cur = items
				continue
			}
		}
		return false
	}
	return true
}
