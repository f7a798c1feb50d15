package messagetemplate

import (
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const table = "message_templates_v1"

// PostgresRepository is a repository containing the message templates based on a PSQL database and
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

// Save creates or replaces a template
func (r *PostgresRepository) Save(t Template) error {
	if ok, err := t.IsValid(); !ok {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %s", t.Name, err.Error())
	}
	_, err = r.newStatement().
		Insert(table).
		Columns("name", "data", "last_modified").
		Values(t.Name, string(data), time.Now().Truncate(time.Millisecond).UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, last_modified = EXCLUDED.last_modified").
		Exec()
	if err != nil {
		return fmt.Errorf("couldn't save template %s: %s", t.Name, err.Error())
	}
	return nil
}

// Get returns a template by name
func (r *PostgresRepository) Get(name string) (Template, bool, error) {
	rows, err := r.newStatement().
		Select("data").
		From(table).
		Where(sq.Eq{"name": name}).
		Query()
	if err != nil {
		return Template{}, false, fmt.Errorf("couldn't retrieve template %s: %s", name, err.Error())
	}
	defer rows.Close()

	if rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return Template{}, false, fmt.Errorf("couldn't scan template %s: %s", name, err.Error())
		}
		var t Template
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return Template{}, false, fmt.Errorf("malformed data, template %s: %s", name, err.Error())
		}
		return t, true, nil
	}
	return Template{}, false, nil
}

// GetAll returns every template keyed by name
func (r *PostgresRepository) GetAll() (map[string]Template, error) {
	rows, err := r.newStatement().
		Select("name", "data").
		From(table).
		Query()
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve templates: %s", err.Error())
	}
	defer rows.Close()

	templates := make(map[string]Template)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("couldn't scan template: %s", err.Error())
		}
		var t Template
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("malformed data, template %s: %s", name, err.Error())
		}
		templates[name] = t
	}
	return templates, rows.Err()
}

// Delete removes a template
func (r *PostgresRepository) Delete(name string) error {
	_, err := r.newStatement().
		Delete(table).
		Where(sq.Eq{"name": name}).
		Exec()
	if err != nil {
		return fmt.Errorf("couldn't delete template %s: %s", name, err.Error())
	}
	return nil
}
