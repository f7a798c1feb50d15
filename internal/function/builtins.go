package function

import (
	"fmt"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept on monetary amounts
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to two places (0.005 -> 0.01)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Money formats an amount as a two-digit decimal string ("20.00")
func Money(d decimal.Decimal) value.Value {
	return value.NewString(RoundMoney(d).StringFixed(MoneyPlaces))
}

// Rate formats a rate as a decimal string, with at least two fractional digits
func Rate(d decimal.Decimal) value.Value {
	if d.Exponent() >= -MoneyPlaces {
		return value.NewString(d.StringFixed(MoneyPlaces))
	}
	return value.NewString(d.String())
}

// RegisterBuiltins registers the arithmetic functions that need no lookup table
func RegisterBuiltins(r *Registry) error {
	if err := r.Register("calculate_vat_amount", []string{"net", "rate"}, calculateVATAmount); err != nil {
		return err
	}
	if err := r.Register("calculate_gross_amount", []string{"net", "vat"}, calculateGrossAmount); err != nil {
		return err
	}
	return r.Register("multiply_discount", []string{"base", "multiplier"}, multiplyDiscount)
}

func calculateVATAmount(args Args) (value.Value, error) {
	net, err := args.Money("net")
	if err != nil {
		return value.Missing, err
	}
	rate, err := args.Decimal("rate")
	if err != nil {
		return value.Missing, err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return value.Missing, fmt.Errorf("%w: rate %s is outside [0, 1)", ErrInvalidArgument, rate)
	}
	return Money(net.Mul(rate)), nil
}

func calculateGrossAmount(args Args) (value.Value, error) {
	net, err := args.Money("net")
	if err != nil {
		return value.Missing, err
	}
	vat, err := args.Money("vat")
	if err != nil {
		return value.Missing, err
	}
	return Money(net.Add(vat)), nil
}

func multiplyDiscount(args Args) (value.Value, error) {
	base, err := args.Decimal("base")
	if err != nil {
		return value.Missing, err
	}
	multiplier, err := args.Decimal("multiplier")
	if err != nil {
		return value.Missing, err
	}
	return Money(base.Mul(multiplier)), nil
}
