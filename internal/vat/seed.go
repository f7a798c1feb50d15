package vat

import (
	"time"

	"github.com/shopspring/decimal"
)

var since2021 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// euStandardRates are the standard rates of the EU member states other than IE, in percent
var euStandardRates = map[string]string{
	"AT": "20", "BE": "21", "BG": "20", "HR": "25", "CY": "19", "CZ": "21", "DK": "25",
	"EE": "20", "FI": "24", "FR": "20", "DE": "19", "GR": "24", "HU": "27", "IT": "22",
	"LV": "21", "LT": "21", "LU": "17", "MT": "18", "NL": "21", "PL": "23", "PT": "23",
	"RO": "19", "SK": "20", "SI": "22", "ES": "21", "SE": "25",
}

// DefaultRegions returns the region of every known country. Countries not listed are ROW.
func DefaultRegions() []CountryRegion {
	regions := []CountryRegion{
		{CountryCode: "GB", Region: RegionUK, EffectiveFrom: since2021},
		{CountryCode: "IE", Region: RegionIE, EffectiveFrom: since2021},
		{CountryCode: "ZA", Region: RegionSA, EffectiveFrom: since2021},
	}
	for code := range euStandardRates {
		regions = append(regions, CountryRegion{CountryCode: code, Region: RegionEU, EffectiveFrom: since2021})
	}
	return regions
}

// DefaultRates returns the standard rates, including the rate changes of EE and FI
func DefaultRates() []CountryRate {
	rates := []CountryRate{
		{CountryCode: "GB", Rate: decimal.RequireFromString("0.20"), EffectiveFrom: since2021},
		{CountryCode: "IE", Rate: decimal.RequireFromString("0.23"), EffectiveFrom: since2021},
		{CountryCode: "ZA", Rate: decimal.RequireFromString("0.15"), EffectiveFrom: since2021},
		{CountryCode: "EE", Rate: decimal.RequireFromString("0.22"), EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{CountryCode: "EE", Rate: decimal.RequireFromString("0.24"), EffectiveFrom: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{CountryCode: "FI", Rate: decimal.RequireFromString("0.255"), EffectiveFrom: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
	}
	for code, percent := range euStandardRates {
		rates = append(rates, CountryRate{
			CountryCode:   code,
			Rate:          decimal.RequireFromString(percent).Shift(-2),
			EffectiveFrom: since2021,
		})
	}
	return rates
}

// Seed stores the default lookup tables
func Seed(repo Repository) error {
	for _, r := range DefaultRegions() {
		if err := repo.SaveRegion(r); err != nil {
			return err
		}
	}
	for _, r := range DefaultRates() {
		if err := repo.SaveRate(r); err != nil {
			return err
		}
	}
	return nil
}
