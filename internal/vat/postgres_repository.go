package vat

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	regionsTable = "vat_country_regions_v1"
	ratesTable   = "vat_country_rates_v1"
)

// PostgresRepository is a repository containing the VAT lookup tables based on a PSQL database and
// implementing the repository interface
type PostgresRepository struct {
	conn *sqlx.DB
}

// NewPostgresRepository returns a new instance of PostgresRepository
func NewPostgresRepository(dbClient *sqlx.DB) Repository {
	r := PostgresRepository{
		conn: dbClient,
	}
	var ifm Repository = &r
	return ifm
}

func (r *PostgresRepository) newStatement() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(r.conn.DB)
}

// SaveRegion adds or replaces a region mapping
func (r *PostgresRepository) SaveRegion(cr CountryRegion) error {
	if cr.CountryCode == "" || cr.Region == "" {
		return errors.New("missing country_code or region")
	}
	_, err := r.newStatement().
		Insert(regionsTable).
		Columns("country_code", "region", "effective_from").
		Values(cr.CountryCode, cr.Region, cr.EffectiveFrom.UTC()).
		Suffix("ON CONFLICT (country_code, effective_from) DO UPDATE SET region = EXCLUDED.region").
		Exec()
	return err
}

// SaveRate adds or replaces a rate
func (r *PostgresRepository) SaveRate(cr CountryRate) error {
	if ok, err := cr.IsValid(); !ok {
		return err
	}
	_, err := r.newStatement().
		Insert(ratesTable).
		Columns("country_code", "rate", "effective_from").
		Values(cr.CountryCode, cr.Rate.String(), cr.EffectiveFrom.UTC()).
		Suffix("ON CONFLICT (country_code, effective_from) DO UPDATE SET rate = EXCLUDED.rate").
		Exec()
	return err
}

// Region returns the region of a country at a date
func (r *PostgresRepository) Region(countryCode string, at time.Time) (string, bool, error) {
	var region string
	err := r.newStatement().
		Select("region").
		From(regionsTable).
		Where(sq.Eq{"country_code": countryCode}).
		Where(sq.LtOrEq{"effective_from": at.UTC()}).
		OrderBy("effective_from DESC").
		Limit(1).
		QueryRow().
		Scan(&region)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.New("couldn't retrieve the region of " + countryCode + ": " + err.Error())
	}
	return region, true, nil
}

// Rate returns the rate of a country at a date
func (r *PostgresRepository) Rate(countryCode string, at time.Time) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := r.newStatement().
		Select("rate").
		From(ratesTable).
		Where(sq.Eq{"country_code": countryCode}).
		Where(sq.LtOrEq{"effective_from": at.UTC()}).
		OrderBy("effective_from DESC").
		Limit(1).
		QueryRow().
		Scan(&rate)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, errors.New("couldn't retrieve the rate of " + countryCode + ": " + err.Error())
	}
	return rate, true, nil
}
