package schema

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/acted/rules-engine/internal/utils/dbutils"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/jmoiron/sqlx"
)

const table = "rule_schemas_v1"

// PostgresRepository is a repository containing the schemas based on a PSQL database and
// implementing the repository interface
type PostgresRepository struct {
	conn *sqlx.DB
}

// NewPostgresRepository returns a new instance of PostgresRepository
func NewPostgresRepository(dbClient *sqlx.DB) Repository {
	r := PostgresRepository{
		conn: dbClient,
	}
	var repo Repository = &r
	return repo
}

func (r *PostgresRepository) newStatement() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(r.conn.DB)
}

// Create stores a new version of a schema and returns its version number
func (r *PostgresRepository) Create(s Schema) (int64, error) {
	if ok, err := s.IsValid(); !ok {
		return -1, err
	}
	doc, err := s.Document.MarshalJSON()
	if err != nil {
		return -1, fmt.Errorf("failed to marshal schema %s: %s", s.Code, err.Error())
	}

	tx, err := r.conn.Beginx()
	if err != nil {
		return -1, fmt.Errorf("couldn't begin transaction: %s", err.Error())
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var version int64
	err = sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(tx).
		Select("COALESCE(MAX(version), 0) + 1").
		From(table).
		Where(sq.Eq{"fields_code": s.Code}).
		QueryRow().Scan(&version)
	if err != nil {
		return -1, fmt.Errorf("couldn't compute next schema version: %s", err.Error())
	}

	_, err = sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(tx).
		Insert(table).
		Columns("fields_code", "version", "active", "data", "creation_datetime").
		Values(s.Code, version, s.Active, string(doc), time.Now().Truncate(time.Millisecond).UTC()).
		Exec()
	if pqerr := dbutils.UniqueViolation(err); pqerr != nil {
		return -1, fmt.Errorf("%w: %s v%d was created concurrently", ErrConcurrentVersion, s.Code, version)
	}
	if err != nil {
		return -1, fmt.Errorf("couldn't insert schema %s: %s", s.Code, err.Error())
	}

	if err = tx.Commit(); err != nil {
		return -1, fmt.Errorf("couldn't commit transaction: %s", err.Error())
	}
	return version, nil
}

// Get returns the latest version of a schema if it is active
func (r *PostgresRepository) Get(code string) (Schema, bool, error) {
	rows, err := r.newStatement().
		Select("fields_code", "version", "active", "data").
		From(table).
		Where(sq.Eq{"fields_code": code}).
		OrderBy("version DESC").
		Limit(1).
		Query()
	if err != nil {
		return Schema{}, false, fmt.Errorf("couldn't retrieve schema %s: %s", code, err.Error())
	}
	defer rows.Close()

	if rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return Schema{}, false, err
		}
		if !s.Active {
			return Schema{}, false, nil
		}
		return s, true, nil
	}
	return Schema{}, false, nil
}

// GetByVersion returns a specific version of a schema, active or not
func (r *PostgresRepository) GetByVersion(code string, version int64) (Schema, bool, error) {
	rows, err := r.newStatement().
		Select("fields_code", "version", "active", "data").
		From(table).
		Where(sq.Eq{"fields_code": code, "version": version}).
		Query()
	if err != nil {
		return Schema{}, false, fmt.Errorf("couldn't retrieve schema %s v%d: %s", code, version, err.Error())
	}
	defer rows.Close()

	return dbutils.ScanFirst(rows, scanSchema)
}

// GetAllActive returns the latest version of every schema, keyed by code, when that version is active
func (r *PostgresRepository) GetAllActive() (map[string]Schema, error) {
	rows, err := r.newStatement().
		Select("fields_code", "version", "active", "data").
		Options("DISTINCT ON (fields_code)").
		From(table).
		OrderBy("fields_code", "version DESC").
		Query()
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve schemas: %s", err.Error())
	}
	defer rows.Close()

	schemas := make(map[string]Schema)
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		if s.Active {
			schemas[s.Code] = s
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schemas, nil
}

func scanSchema(rows *sql.Rows) (Schema, error) {
	var s Schema
	var data string
	if err := rows.Scan(&s.Code, &s.Version, &s.Active, &data); err != nil {
		return Schema{}, errors.New("couldn't scan the retrieved data: " + err.Error())
	}
	doc, err := value.Parse([]byte(data))
	if err != nil {
		return Schema{}, fmt.Errorf("malformed data, schema %s v%d: %s", s.Code, s.Version, err.Error())
	}
	s.Document = doc
	return s, nil
}
