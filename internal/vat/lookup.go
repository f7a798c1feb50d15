package vat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Region codes
const (
	RegionUK  = "UK"
	RegionIE  = "IE"
	RegionEU  = "EU"
	RegionSA  = "SA"
	RegionROW = "ROW"
)

// ErrInvalidRate is returned when a rate is outside [0, 1)
var ErrInvalidRate = errors.New("vat rate must be in [0, 1)")

// CountryRegion maps a country to a VAT region from a date on
type CountryRegion struct {
	CountryCode   string    `json:"country_code"`
	Region        string    `json:"region"`
	EffectiveFrom time.Time `json:"effective_from"`
}

// CountryRate is the standard VAT rate of a country from a date on
type CountryRate struct {
	CountryCode   string          `json:"country_code"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
}

// IsValid checks the rate bounds
func (r CountryRate) IsValid() (bool, error) {
	if r.CountryCode == "" {
		return false, errors.New("missing country_code")
	}
	if r.Rate.IsNegative() || r.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return false, ErrInvalidRate
	}
	return true, nil
}

// Repository holds the effective-dated lookup tables
type Repository interface {
	SaveRegion(r CountryRegion) error
	SaveRate(r CountryRate) error
	Region(countryCode string, at time.Time) (string, bool, error)
	Rate(countryCode string, at time.Time) (decimal.Decimal, bool, error)
}

var (
	_globalRepositoryMu sync.RWMutex
	_globalRepository   Repository
)

// R is used to access the global repository singleton
func R() Repository {
	_globalRepositoryMu.RLock()
	defer _globalRepositoryMu.RUnlock()

	repository := _globalRepository
	return repository
}

// ReplaceGlobals affect a new repository to the global repository singleton
func ReplaceGlobals(repository Repository) func() {
	_globalRepositoryMu.Lock()
	defer _globalRepositoryMu.Unlock()

	prev := _globalRepository
	_globalRepository = repository
	return func() { ReplaceGlobals(prev) }
}

// MemoryRepository is an in-memory implementation of the lookup tables
type MemoryRepository struct {
	mu      sync.RWMutex
	regions map[string][]CountryRegion
	rates   map[string][]CountryRate
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{
		regions: make(map[string][]CountryRegion),
		rates:   make(map[string][]CountryRate),
	}
	var repo Repository = &r
	return repo
}

// SaveRegion adds or replaces a region mapping
func (r *MemoryRepository) SaveRegion(cr CountryRegion) error {
	if cr.CountryCode == "" || cr.Region == "" {
		return errors.New("missing country_code or region")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.regions[cr.CountryCode]
	for i := range rows {
		if rows[i].EffectiveFrom.Equal(cr.EffectiveFrom) {
			rows[i] = cr
			return nil
		}
	}
	rows = append(rows, cr)
	sort.Slice(rows, func(i, j int) bool { return rows[i].EffectiveFrom.Before(rows[j].EffectiveFrom) })
	r.regions[cr.CountryCode] = rows
	return nil
}

// SaveRate adds or replaces a rate
func (r *MemoryRepository) SaveRate(cr CountryRate) error {
	if ok, err := cr.IsValid(); !ok {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.rates[cr.CountryCode]
	for i := range rows {
		if rows[i].EffectiveFrom.Equal(cr.EffectiveFrom) {
			rows[i] = cr
			return nil
		}
	}
	rows = append(rows, cr)
	sort.Slice(rows, func(i, j int) bool { return rows[i].EffectiveFrom.Before(rows[j].EffectiveFrom) })
	r.rates[cr.CountryCode] = rows
	return nil
}

// Region returns the region of a country at a date
func (r *MemoryRepository) Region(countryCode string, at time.Time) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.regions[countryCode]
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].EffectiveFrom.After(at) {
			return rows[i].Region, true, nil
		}
	}
	return "", false, nil
}

// Rate returns the rate of a country at a date
func (r *MemoryRepository) Rate(countryCode string, at time.Time) (decimal.Decimal, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.rates[countryCode]
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].EffectiveFrom.After(at) {
			return rows[i].Rate, true, nil
		}
	}
	return decimal.Zero, false, nil
}
