package vat

import (
	"fmt"
	"strings"
	"time"

	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/pkg/value"
	"go.uber.org/zap"
)

// ErrUnknownCountry is returned when no rate is known for a country
var ErrUnknownCountry = fmt.Errorf("%w: unknown country", function.ErrInvalidArgument)

// RegisterFunctions registers the lookup functions backed by repo.
// now dates the lookups and defaults to time.Now.
func RegisterFunctions(reg *function.Registry, repo Repository, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	l := lookups{repo: repo, now: now}
	if err := reg.Register("lookup_region", []string{"country_code"}, l.region); err != nil {
		return err
	}
	return reg.Register("lookup_vat_rate", []string{"country_code"}, l.rate)
}

type lookups struct {
	repo Repository
	now  func() time.Time
}

func countryCode(args function.Args) (string, error) {
	v := args.Get("country_code")
	if v.IsNull() {
		return "", nil
	}
	s, err := args.String("country_code")
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(s)), nil
}

// region maps a country to its VAT region. Unknown or absent countries are ROW.
func (l lookups) region(args function.Args) (value.Value, error) {
	code, err := countryCode(args)
	if err != nil {
		return value.Missing, err
	}
	if code == "" {
		return value.NewString(RegionROW), nil
	}
	region, found, err := l.repo.Region(code, l.now())
	if err != nil {
		return value.Missing, err
	}
	if !found {
		zap.L().Debug("Country has no VAT region, using ROW", zap.String("country", code))
		return value.NewString(RegionROW), nil
	}
	return value.NewString(region), nil
}

func (l lookups) rate(args function.Args) (value.Value, error) {
	code, err := countryCode(args)
	if err != nil {
		return value.Missing, err
	}
	if code == "" {
		return value.Missing, fmt.Errorf("%w: country_code is empty", function.ErrInvalidArgument)
	}
	rate, found, err := l.repo.Rate(code, l.now())
	if err != nil {
		return value.Missing, err
	}
	if !found {
		return value.Missing, fmt.Errorf("%w: %s", ErrUnknownCountry, code)
	}
	if ok, err := (CountryRate{CountryCode: code, Rate: rate}).IsValid(); !ok {
		return value.Missing, err
	}
	return function.Rate(rate), nil
}
