package predicate

import (
	"errors"
	"fmt"

	"github.com/acted/rules-engine/pkg/value"
)

var (
	// ErrTypeMismatch is returned when an operand cannot be used by an operator
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrArity is returned when an operator receives the wrong number of operands
	ErrArity = errors.New("wrong number of operands")
	// ErrBadPath is returned when a var path cannot be resolved against the context
	ErrBadPath = errors.New("bad path")
)

// Error is the diagnostic attached to a failed evaluation
type Error struct {
	Operator string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("operator %q: %s", e.Operator, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(operator string, format string, args ...interface{}) error {
	return &Error{Operator: operator, Err: fmt.Errorf(format, args...)}
}

// Options configures the values substituted for missing paths
type Options struct {
	// LookupDefault replaces a missing var outside arithmetic (null by default)
	LookupDefault value.Value
	// ArithmeticDefault replaces a missing var used as an arithmetic operand (0 by default)
	ArithmeticDefault value.Value
}

// DefaultOptions returns null for lookups and 0 for arithmetic
func DefaultOptions() Options {
	return Options{
		LookupDefault:     value.NewNull(),
		ArithmeticDefault: value.NewInt(0),
	}
}

// Evaluator evaluates JsonLogic-shaped predicates.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	opts Options
}

// New returns an Evaluator using opts
func New(opts Options) *Evaluator {
	if opts.LookupDefault.IsMissing() {
		opts.LookupDefault = value.NewNull()
	}
	if opts.ArithmeticDefault.IsMissing() {
		opts.ArithmeticDefault = value.NewInt(0)
	}
	return &Evaluator{opts: opts}
}

// Default is an Evaluator with DefaultOptions
var Default = New(DefaultOptions())

// Evaluate returns the value of node against data.
// A missing result is replaced by the lookup default.
func (e *Evaluator) Evaluate(node, data value.Value) (value.Value, error) {
	v, err := e.eval(node, data)
	if err != nil {
		return value.NewNull(), err
	}
	return e.lookup(v), nil
}

// Match evaluates node as a condition. Any evaluation error makes the rule not match;
// the error is returned as the diagnostic.
func (e *Evaluator) Match(node, data value.Value) (bool, error) {
	v, err := e.eval(node, data)
	if err != nil {
		return false, err
	}
	return e.lookup(v).Truthy(), nil
}

func (e *Evaluator) lookup(v value.Value) value.Value {
	if v.IsMissing() {
		return e.opts.LookupDefault
	}
	return v
}

// IsOperation reports whether node is a single-key object whose key is a known operator
func IsOperation(node value.Value) (string, value.Value, bool) {
	fields, ok := node.Object()
	if !ok || len(fields) != 1 {
		return "", value.Missing, false
	}
	for op, args := range fields {
		if _, known := operators[op]; known || op == "var" {
			return op, args, true
		}
	}
	return "", value.Missing, false
}

func (e *Evaluator) eval(node, data value.Value) (value.Value, error) {
	if op, args, ok := IsOperation(node); ok {
		if op == "var" {
			return e.evalVar(args, data)
		}
		return operators[op](e, operands(args), data)
	}
	if items, ok := node.Array(); ok {
		out := make([]value.Value, len(items))
		for i, item := range items {
			v, err := e.eval(item, data)
			if err != nil {
				return value.Missing, err
			}
			out[i] = e.lookup(v)
		}
		return value.NewArray(out), nil
	}
	return node, nil
}

// operands normalizes {"op": x} into [x]
func operands(args value.Value) []value.Value {
	if items, ok := args.Array(); ok {
		return items
	}
	return []value.Value{args}
}

func (e *Evaluator) evalVar(args, data value.Value) (value.Value, error) {
	items := operands(args)
	if len(items) == 0 || len(items) > 2 {
		return value.Missing, opError("var", "%w: expected a path and an optional default", ErrArity)
	}
	pathNode, err := e.eval(items[0], data)
	if err != nil {
		return value.Missing, err
	}
	path, err := pathString(pathNode)
	if err != nil {
		return value.Missing, err
	}
	found, err := data.Lookup(path)
	if err != nil {
		return value.Missing, &Error{Operator: "var", Err: fmt.Errorf("%w: %q: %s", ErrBadPath, path, err)}
	}
	if found.IsMissing() && len(items) == 2 {
		return e.eval(items[1], data)
	}
	return found, nil
}

func pathString(v value.Value) (string, error) {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.Str()
		return s, nil
	case value.KindNumber:
		return v.String(), nil
	case value.KindNull, value.KindMissing:
		return "", nil
	default:
		return "", opError("var", "%w: path must be a string, got %s", ErrTypeMismatch, v.Kind())
	}
}
