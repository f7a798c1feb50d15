package predicate

import (
	"strings"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
)

type operator func(e *Evaluator, args []value.Value, data value.Value) (value.Value, error)

var operators map[string]operator

func init() {
	operators = map[string]operator{
		"==":  opEqual,
		"!=":  opNotEqual,
		"<":   compareChain("<", func(c int) bool { return c < 0 }),
		"<=":  compareChain("<=", func(c int) bool { return c <= 0 }),
		">":   compareBinary(">", func(c int) bool { return c > 0 }),
		">=":  compareBinary(">=", func(c int) bool { return c >= 0 }),
		"+":   opAdd,
		"-":   opSub,
		"*":   opMul,
		"/":   opDiv,
		"and": opAnd,
		"or":  opOr,
		"!":   opNot,
		"!!":  opTruthy,
		"in":  opIn,

		"missing": opMissing,
	}
}

// Operators returns the names of every supported operator, "var" included
func Operators() []string {
	names := make([]string, 0, len(operators)+1)
	names = append(names, "var")
	for name := range operators {
		names = append(names, name)
	}
	return names
}

func (e *Evaluator) evalAll(args []value.Value, data value.Value) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, arg := range args {
		v, err := e.eval(arg, data)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Evaluator) binary(op string, args []value.Value, data value.Value) (value.Value, value.Value, error) {
	if len(args) != 2 {
		return value.Missing, value.Missing, opError(op, "%w: expected 2, got %d", ErrArity, len(args))
	}
	vals, err := e.evalAll(args, data)
	if err != nil {
		return value.Missing, value.Missing, err
	}
	return e.lookup(vals[0]), e.lookup(vals[1]), nil
}

// looseEqual compares numbers with numeric strings by value; other
// cross-type comparisons are false
func looseEqual(a, b value.Value) bool {
	if a.Kind() == value.KindNumber || b.Kind() == value.KindNumber {
		an, aok := a.Numeric()
		bn, bok := b.Numeric()
		if aok && bok {
			return an.Equal(bn)
		}
		return false
	}
	if a.IsNull() && b.IsNull() {
		return true
	}
	return a.Equal(b)
}

func opEqual(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	a, b, err := e.binary("==", args, data)
	if err != nil {
		return value.Missing, err
	}
	return value.NewBool(looseEqual(a, b)), nil
}

func opNotEqual(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	a, b, err := e.binary("!=", args, data)
	if err != nil {
		return value.Missing, err
	}
	return value.NewBool(!looseEqual(a, b)), nil
}

// order returns the ordering of a and b, or false when they are not comparable
func order(a, b value.Value) (int, bool) {
	if a.Kind() == value.KindNumber || b.Kind() == value.KindNumber {
		an, aok := a.Numeric()
		bn, bok := b.Numeric()
		if !aok || !bok {
			return 0, false
		}
		return an.Cmp(bn), true
	}
	as, aok := a.Str()
	bs, bok := b.Str()
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func compareBinary(op string, accept func(int) bool) operator {
	return func(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
		a, b, err := e.binary(op, args, data)
		if err != nil {
			return value.Missing, err
		}
		c, ok := order(a, b)
		return value.NewBool(ok && accept(c)), nil
	}
}

// compareChain supports the between form {"<": [a, b, c]}
func compareChain(op string, accept func(int) bool) operator {
	return func(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return value.Missing, opError(op, "%w: expected 2 or 3, got %d", ErrArity, len(args))
		}
		vals, err := e.evalAll(args, data)
		if err != nil {
			return value.Missing, err
		}
		for i := 0; i+1 < len(vals); i++ {
			c, ok := order(e.lookup(vals[i]), e.lookup(vals[i+1]))
			if !ok || !accept(c) {
				return value.NewBool(false), nil
			}
		}
		return value.NewBool(true), nil
	}
}

func (e *Evaluator) number(op string, v value.Value) (decimal.Decimal, error) {
	if v.IsMissing() {
		v = e.opts.ArithmeticDefault
	}
	if v.Kind() == value.KindNumber || v.Kind() == value.KindString {
		if d, ok := v.Numeric(); ok {
			return d, nil
		}
	}
	return decimal.Zero, opError(op, "%w: %s is not a number", ErrTypeMismatch, v)
}

func (e *Evaluator) numbers(op string, args []value.Value, data value.Value) ([]decimal.Decimal, error) {
	vals, err := e.evalAll(args, data)
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		d, err := e.number(op, v)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func opAdd(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	nums, err := e.numbers("+", args, data)
	if err != nil {
		return value.Missing, err
	}
	sum := decimal.Zero
	for _, n := range nums {
		sum = sum.Add(n)
	}
	return value.NewNumber(sum), nil
}

func opSub(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return value.Missing, opError("-", "%w: expected 1 or 2, got %d", ErrArity, len(args))
	}
	nums, err := e.numbers("-", args, data)
	if err != nil {
		return value.Missing, err
	}
	if len(nums) == 1 {
		return value.NewNumber(nums[0].Neg()), nil
	}
	return value.NewNumber(nums[0].Sub(nums[1])), nil
}

func opMul(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Missing, opError("*", "%w: expected at least 1", ErrArity)
	}
	nums, err := e.numbers("*", args, data)
	if err != nil {
		return value.Missing, err
	}
	product := decimal.NewFromInt(1)
	for _, n := range nums {
		product = product.Mul(n)
	}
	return value.NewNumber(product), nil
}

// divisionPrecision bounds non-terminating quotients
const divisionPrecision = 16

func opDiv(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Missing, opError("/", "%w: expected 2, got %d", ErrArity, len(args))
	}
	nums, err := e.numbers("/", args, data)
	if err != nil {
		return value.Missing, err
	}
	if nums[1].IsZero() {
		return value.NewNull(), nil
	}
	return value.NewNumber(nums[0].DivRound(nums[1], divisionPrecision)), nil
}

func opAnd(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Missing, opError("and", "%w: expected at least 1", ErrArity)
	}
	var last value.Value
	for _, arg := range args {
		v, err := e.eval(arg, data)
		if err != nil {
			return value.Missing, err
		}
		last = e.lookup(v)
		if !last.Truthy() {
			return last, nil
		}
	}
	return last, nil
}

func opOr(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Missing, opError("or", "%w: expected at least 1", ErrArity)
	}
	var last value.Value
	for _, arg := range args {
		v, err := e.eval(arg, data)
		if err != nil {
			return value.Missing, err
		}
		last = e.lookup(v)
		if last.Truthy() {
			return last, nil
		}
	}
	return last, nil
}

func (e *Evaluator) unary(op string, args []value.Value, data value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Missing, opError(op, "%w: expected 1, got %d", ErrArity, len(args))
	}
	v, err := e.eval(args[0], data)
	if err != nil {
		return value.Missing, err
	}
	return e.lookup(v), nil
}

func opNot(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	v, err := e.unary("!", args, data)
	if err != nil {
		return value.Missing, err
	}
	return value.NewBool(!v.Truthy()), nil
}

func opTruthy(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	v, err := e.unary("!!", args, data)
	if err != nil {
		return value.Missing, err
	}
	return value.NewBool(v.Truthy()), nil
}

func opIn(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	needle, haystack, err := e.binary("in", args, data)
	if err != nil {
		return value.Missing, err
	}
	if items, ok := haystack.Array(); ok {
		for _, item := range items {
			if looseEqual(needle, item) {
				return value.NewBool(true), nil
			}
		}
		return value.NewBool(false), nil
	}
	if s, ok := haystack.Str(); ok {
		if sub, ok := needle.Str(); ok {
			return value.NewBool(strings.Contains(s, sub)), nil
		}
	}
	return value.NewBool(false), nil
}

// opMissing returns the paths, among its operands, that are absent, null or empty strings.
// A single array operand is taken as the list of paths.
func opMissing(e *Evaluator, args []value.Value, data value.Value) (value.Value, error) {
	keys, err := e.evalAll(args, data)
	if err != nil {
		return value.Missing, err
	}
	if len(keys) == 1 {
		if items, ok := keys[0].Array(); ok {
			keys = items
		}
	}
	out := make([]value.Value, 0)
	for _, key := range keys {
		var path string
		switch key.Kind() {
		case value.KindString:
			path, _ = key.Str()
		case value.KindNumber:
			path = key.String()
		default:
			return value.Missing, opError("missing", "%w: path must be a string, got %s", ErrTypeMismatch, key.Kind())
		}
		found, err := data.Lookup(path)
		if err != nil || found.IsNull() {
			out = append(out, value.NewString(path))
			continue
		}
		if s, ok := found.Str(); ok && s == "" {
			out = append(out, value.NewString(path))
		}
	}
	return value.NewArray(out), nil
}
