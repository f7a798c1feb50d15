package function

import (
	"fmt"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
)

// Args are the arguments bound to a function call, keyed by parameter name
type Args struct {
	function string
	values   map[string]value.Value
}

// Get returns the raw argument value
func (a Args) Get(name string) value.Value {
	return a.values[name]
}

// String returns a string argument
func (a Args) String(name string) (string, error) {
	s, ok := a.values[name].Str()
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidArgument, name, a.values[name].Kind())
	}
	return s, nil
}

// Decimal returns a number or numeric string argument
func (a Args) Decimal(name string) (decimal.Decimal, error) {
	d, ok := a.values[name].Numeric()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s must be a decimal, got %s", ErrInvalidArgument, name, a.values[name])
	}
	return d, nil
}

// Money returns a monetary argument. Money travels as decimal strings only;
// JSON numbers are rejected.
func (a Args) Money(name string) (decimal.Decimal, error) {
	v := a.values[name]
	if v.Kind() != value.KindString {
		return decimal.Zero, fmt.Errorf("%w: %s is a monetary amount and must be a decimal string, got %s", ErrInvalidArgument, name, v.Kind())
	}
	d, ok := v.Numeric()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s is not a decimal: %s", ErrInvalidArgument, name, v)
	}
	return d, nil
}
