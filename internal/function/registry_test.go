package function

import (
	"errors"
	"reflect"
	"testing"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
)

func newTestRegistry(t *testing.T) *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRegister(t *testing.T) {
	r := newTestRegistry(t)
	want := []string{"calculate_gross_amount", "calculate_vat_amount", "multiply_discount"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	f, ok := r.Lookup("calculate_vat_amount")
	if !ok || f.Arity() != 2 {
		t.Errorf("invalid function %+v", f)
	}
	err := r.Register("calculate_vat_amount", []string{"x"}, func(Args) (value.Value, error) { return value.Missing, nil })
	if !errors.Is(err, ErrDuplicateFunction) {
		t.Errorf("expected ErrDuplicateFunction, got %v", err)
	}
	if err := r.Register("", nil, nil); err == nil {
		t.Error("empty registration must fail")
	}
}

func TestCallBinding(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		args string
		want string
		err  error
	}{
		{"named", `{"net": "50.00", "rate": "0.20"}`, `"10.00"`, nil},
		{"positional", `["50.00", 0.2]`, `"10.00"`, nil},
		{"missing named", `{"net": "50.00"}`, ``, ErrArity},
		{"wrong named", `{"net": "50.00", "ratio": "0.20"}`, ``, ErrArity},
		{"too many positional", `["50.00", "0.20", 1]`, ``, ErrArity},
		{"no arguments", `null`, ``, ErrArity},
		{"money as number", `{"net": 50, "rate": "0.20"}`, ``, ErrInvalidArgument},
		{"rate out of range", `{"net": "50.00", "rate": "1.5"}`, ``, ErrInvalidArgument},
		{"rate not a number", `{"net": "50.00", "rate": "abc"}`, ``, ErrInvalidArgument},
	}
	for _, test := range tests {
		got, err := r.Call("calculate_vat_amount", value.MustParse(test.args))
		if test.err != nil {
			if !errors.Is(err, test.err) {
				t.Errorf("%s: expected %v, got %v", test.name, test.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if got.String() != test.want {
			t.Errorf("%s: got %s, want %s", test.name, got, test.want)
		}
	}

	if _, err := r.Call("unknown", value.MustParse(`[]`)); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
}

func TestCalculateVATAmountRounding(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		net, rate, want string
	}{
		{"0.025", "0.20", "0.01"},
		{"0.05", "0.10", "0.01"},
		{"0.04", "0.10", "0.00"},
		{"100.00", "0.23", "23.00"},
		{"19.99", "0.21", "4.20"},
		{"33.33", "0.15", "5.00"},
		{"10.00", "0", "0.00"},
	}
	for _, test := range tests {
		got, err := r.Call("calculate_vat_amount", value.NewArray([]value.Value{value.NewString(test.net), value.NewString(test.rate)}))
		if err != nil {
			t.Errorf("%s x %s: %v", test.net, test.rate, err)
			continue
		}
		if s, _ := got.Str(); s != test.want {
			t.Errorf("%s x %s: got %s, want %s", test.net, test.rate, s, test.want)
		}
	}
}

func TestCalculateGrossAmount(t *testing.T) {
	r := newTestRegistry(t)
	got, err := r.Call("calculate_gross_amount", value.MustParse(`{"net": "50.00", "vat": "10.00"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != `"60.00"` {
		t.Errorf("got %s", got)
	}
	if _, err := r.Call("calculate_gross_amount", value.MustParse(`{"net": "50.00", "vat": 10}`)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMultiplyDiscount(t *testing.T) {
	r := newTestRegistry(t)
	got, err := r.Call("multiply_discount", value.MustParse(`{"base": 150, "multiplier": "0.10"}`))
	if err != nil {
		t.Fatal(err)
	}
	d, ok := got.Numeric()
	if !ok || !d.Equal(decimal.NewFromInt(15)) {
		t.Errorf("got %s", got)
	}
}

func TestRateFormat(t *testing.T) {
	tests := map[string]string{
		"0.2":    "0.20",
		"0":      "0.00",
		"0.23":   "0.23",
		"0.055":  "0.055",
		"0.0825": "0.0825",
	}
	for in, want := range tests {
		if s, _ := Rate(decimal.RequireFromString(in)).Str(); s != want {
			t.Errorf("Rate(%s): got %s, want %s", in, s, want)
		}
	}
}
