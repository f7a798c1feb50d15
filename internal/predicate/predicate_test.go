package predicate

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/acted/rules-engine/pkg/value"
)

var testContext = value.MustParse(`{
	"user": {"country_code": "GB", "age": 42, "tags": ["vip", "beta"]},
	"cart": {"total": 150, "total_str": "150.00", "items": [{"net": "10.50"}, {"net": "4.50"}]},
	"vat": {"region": "UK", "rate": "0.20"},
	"flag": false,
	"nothing": null
}`)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want bool
	}{
		{"literal true", `true`, true},
		{"literal false", `false`, false},
		{"string equality", `{"==": [{"var": "vat.region"}, "UK"]}`, true},
		{"string inequality", `{"!=": [{"var": "vat.region"}, "IE"]}`, true},
		{"number vs numeric string", `{"==": [{"var": "cart.total"}, "150.00"]}`, true},
		{"numeric string vs number", `{">=": [{"var": "cart.total_str"}, 100]}`, true},
		{"number vs bool", `{"==": [1, true]}`, false},
		{"number vs text", `{"<": [1, "abc"]}`, false},
		{"string ordering", `{"<": ["abc", "abd"]}`, true},
		{"between", `{"<": [0, {"var": "vat.rate"}, 1]}`, true},
		{"between inclusive", `{"<=": [0.20, {"var": "vat.rate"}, 0.20]}`, true},
		{"missing is null", `{"==": [{"var": "user.unknown"}, null]}`, true},
		{"missing intermediate is null", `{"==": [{"var": "a.b.c"}, null]}`, true},
		{"explicit default", `{"==": [{"var": ["user.region", "ROW"]}, "ROW"]}`, true},
		{"array index", `{"==": [{"var": "cart.items.1.net"}, 4.5]}`, true},
		{"and short circuit", `{"and": [{"var": "flag"}, {"==": [{"var": "user.country_code.deeper"}, 1]}]}`, false},
		{"or short circuit", `{"or": [true, {"==": [{"var": "user.country_code.deeper"}, 1]}]}`, true},
		{"not", `{"!": [{"var": "flag"}]}`, true},
		{"not single operand", `{"!": {"var": "nothing"}}`, true},
		{"double not", `{"!!": [{"var": "user.tags"}]}`, true},
		{"in array", `{"in": [{"var": "user.country_code"}, ["GB", "IE"]]}`, true},
		{"not in array", `{"in": ["ZA", ["GB", "IE"]]}`, false},
		{"in string", `{"in": ["vip", "vip-customer"]}`, true},
		{"arithmetic", `{"==": [{"+": [{"var": "cart.items.0.net"}, {"var": "cart.items.1.net"}]}, 15]}`, true},
		{"missing in arithmetic is zero", `{"==": [{"+": [{"var": "cart.discount"}, 5]}, 5]}`, true},
		{"multiplication", `{"==": [{"*": [{"var": "cart.total"}, {"var": "vat.rate"}]}, 30]}`, true},
		{"subtraction", `{"==": [{"-": [10, 2.5]}, 7.5]}`, true},
		{"negation", `{"==": [{"-": [3]}, -3]}`, true},
		{"division", `{"==": [{"/": [1, 4]}, 0.25]}`, true},
		{"division by zero is null", `{"==": [{"/": [1, 0]}, null]}`, true},
		{"division by zero is falsy", `{"/": [1, 0]}`, false},
		{"non-terminating division", `{"<": [0.33, {"/": [1, 3]}, 0.34]}`, true},
		{"literal object is not an operator", `{"==": [{"region": "UK"}, {"region": "UK"}]}`, true},
	}

	for _, test := range tests {
		got, err := Default.Match(value.MustParse(test.rule), testContext)
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got %t, want %t", test.name, got, test.want)
		}
	}
}

func TestMatchDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		rule string
		err  error
	}{
		{"path through a scalar", `{"==": [{"var": "user.country_code.deeper"}, 1]}`, ErrBadPath},
		{"non numeric arithmetic", `{"+": [{"var": "vat.region"}, 1]}`, ErrTypeMismatch},
		{"null arithmetic", `{"*": [{"var": "nothing"}, 2]}`, ErrTypeMismatch},
		{"bool arithmetic", `{"-": [true, 1]}`, ErrTypeMismatch},
		{"arity", `{"==": [1]}`, ErrArity},
		{"bad var path", `{"var": [{"var": "user"}]}`, ErrTypeMismatch},
	}
	for _, test := range tests {
		got, err := Default.Match(value.MustParse(test.rule), testContext)
		if got {
			t.Errorf("%s: a failing predicate must not match", test.name)
		}
		if !errors.Is(err, test.err) {
			t.Errorf("%s: got error %v, want %v", test.name, err, test.err)
		}
		var perr *Error
		if !errors.As(err, &perr) || perr.Operator == "" {
			t.Errorf("%s: diagnostic must name the operator, got %v", test.name, err)
		}
	}
}

func TestConfigurableDefaults(t *testing.T) {
	e := New(Options{
		LookupDefault:     value.NewString("unknown"),
		ArithmeticDefault: value.NewInt(1),
	})
	ok, err := e.Match(value.MustParse(`{"==": [{"var": "user.region"}, "unknown"]}`), testContext)
	if err != nil || !ok {
		t.Errorf("lookup default not applied: %t %v", ok, err)
	}
	ok, err = e.Match(value.MustParse(`{"==": [{"*": [{"var": "cart.multiplier"}, 7]}, 7]}`), testContext)
	if err != nil || !ok {
		t.Errorf("arithmetic default not applied: %t %v", ok, err)
	}
}

func TestEvaluateValue(t *testing.T) {
	v, err := Default.Evaluate(value.MustParse(`{"*": [{"var": "cart.items.0.net"}, 2]}`), testContext)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(value.MustParse(`21`)) {
		t.Errorf("unexpected value %s", v)
	}

	v, err = Default.Evaluate(value.MustParse(`[{"var": "vat.region"}, "x", {"var": "absent"}]`), testContext)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != `["UK","x",null]` {
		t.Errorf("unexpected array %s", v)
	}
}

func TestEvaluatorIsPure(t *testing.T) {
	ctx := testContext.Clone()
	rule := value.MustParse(`{"and": [{"==": [{"var": "vat.region"}, "UK"]}, {">": [{"+": [{"var": "cart.total"}, 1]}, 100]}]}`)
	before := ctx.String()
	for i := 0; i < 10; i++ {
		if _, err := Default.Match(rule, ctx); err != nil {
			t.Fatal(err)
		}
	}
	if ctx.String() != before {
		t.Error("evaluation mutated the context")
	}
}

func TestComparisonSymmetry(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	samples := []string{`1`, `"1"`, `"1.00"`, `2.5`, `"abc"`, `true`, `null`, `[1]`, `{"a": 1}`, `""`}
	for i := 0; i < 200; i++ {
		a := value.MustParse(samples[rnd.Intn(len(samples))])
		b := value.MustParse(samples[rnd.Intn(len(samples))])
		if looseEqual(a, b) != looseEqual(b, a) {
			t.Errorf("== is not symmetric for %s and %s", a, b)
		}
		eq, _ := Default.Match(value.NewObject(map[string]value.Value{"==": value.NewArray([]value.Value{a, b})}), value.Missing)
		ne, _ := Default.Match(value.NewObject(map[string]value.Value{"!=": value.NewArray([]value.Value{a, b})}), value.Missing)
		if eq == ne {
			t.Errorf("== and != agree for %s and %s", a, b)
		}
	}
}

func TestVars(t *testing.T) {
	rule := value.MustParse(`{"and": [
		{"==": [{"var": "vat.region"}, "UK"]},
		{"in": [{"var": "cart_item.product_type"}, ["Printed", "FlashCard"]]},
		{"==": [{"var": ["user.region", {"var": "user.country_code"}]}, "EU"]},
		{"==": [{"var": "vat.region"}, "UK"]}
	]}`)
	want := []string{"cart_item.product_type", "user.country_code", "user.region", "vat.region"}
	if got := Vars(rule); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	valid := []string{
		`true`,
		`{"==": [{"var": "vat.region"}, "UK"]}`,
		`{"and": [{"!=": [{"var": "vat.rate"}, null]}, {"in": [{"var": "cart_item.product_type"}, ["Printed", "PBOR"]]}]}`,
		`{"<": [0, {"var": "vat.rate"}, 1]}`,
		`{"!": {"missing": ["user.country_code", "cart.total"]}}`,
	}
	for _, rule := range valid {
		if err := Check(value.MustParse(rule)); err != nil {
			t.Errorf("%s: unexpected error %v", rule, err)
		}
	}

	invalid := []string{
		`{"==": [1]}`,
		`{"and": [{"==": [1, 2, 3]}]}`,
		`{"a": 1, "b": 2}`,
		`{"unknown_operator": [1, 2]}`,
		`{"and": [{"max": [1, 2]}, true]}`,
		`{"and": [{"if": [true, 1, 2]}, true]}`,
		`{"==": [{"var": "cart"}, {"total": 1, "count": 2}]}`,
	}
	for _, rule := range invalid {
		if err := Check(value.MustParse(rule)); !errors.Is(err, ErrInvalidPredicate) {
			t.Errorf("%s: expected ErrInvalidPredicate, got %v", rule, err)
		}
	}
}

func TestMissing(t *testing.T) {
	e := New(DefaultOptions())
	data := value.MustParse(`{"a": 1, "b": null, "c": "", "d": {"e": 0}}`)

	cases := []struct {
		node string
		want string
	}{
		{`{"missing": ["a", "b", "c", "d.e", "f"]}`, `["b","c","f"]`},
		{`{"missing": "a"}`, `[]`},
		{`{"missing": [["a", "z"]]}`, `["z"]`},
		{`{"missing": ["a.x"]}`, `["a.x"]`},
	}
	for _, c := range cases {
		got, err := e.Evaluate(value.MustParse(c.node), data)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.node, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("%s: got %s, want %s", c.node, got, c.want)
		}
	}

	matched, err := e.Match(value.MustParse(`{"and": [{"missing": ["a"]}, true]}`), data)
	if err != nil || matched {
		t.Errorf("an empty missing list is falsy, got matched=%v err=%v", matched, err)
	}
	if paths := Vars(value.MustParse(`{"missing": ["user.country_code"]}`)); len(paths) != 1 || paths[0] != "user.country_code" {
		t.Errorf("missing paths must be reported as vars, got %v", paths)
	}
}
