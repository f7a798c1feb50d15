package rule

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostgresRulesRepository is a repository containing the rules based on a PSQL database and
// implementing the repository interface
type PostgresRulesRepository struct {
	conn *sqlx.DB
}

// NewPostgresRepository returns a new instance of PostgresRulesRepository
func NewPostgresRepository(dbClient *sqlx.DB) Repository {
	r := PostgresRulesRepository{
		conn: dbClient,
	}
	var ifm Repository = &r
	return ifm
}

func (r *PostgresRulesRepository) newStatement() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(r.conn.DB)
}

// Create creates a new Rule in the repository, with version 1
func (r *PostgresRulesRepository) Create(rule Rule) (int64, error) {
	if ok, err := rule.IsValid(); !ok {
		return -1, err
	}

	t := time.Now().Truncate(1 * time.Millisecond).UTC()
	tx, err := r.conn.Beginx()
	if err != nil {
		return -1, err
	}

	res, err := tx.Exec(`INSERT INTO rules_v1(rule_code, last_modified) VALUES ($1, $2) ON CONFLICT DO NOTHING`, rule.Code, t)
	if err != nil {
		tx.Rollback()
		return -1, err
	}
	if i, err := res.RowsAffected(); err != nil || i != 1 {
		tx.Rollback()
		return -1, fmt.Errorf("%w: %s", ErrRuleExists, rule.Code)
	}

	rule.Version = 1
	if err := insertVersion(tx, rule, t); err != nil {
		tx.Rollback()
		return -1, err
	}

	if err := tx.Commit(); err != nil {
		return -1, err
	}
	return rule.Version, nil
}

// Publish stores a new version of an existing rule
func (r *PostgresRulesRepository) Publish(rule Rule) (int64, error) {
	if ok, err := rule.IsValid(); !ok {
		return -1, err
	}
	return r.nextVersion(rule.Code, func(latest Rule) Rule {
		return rule
	})
}

// Retire publishes a new, inactive version of a rule
func (r *PostgresRulesRepository) Retire(code string) (int64, error) {
	return r.nextVersion(code, func(latest Rule) Rule {
		latest.Active = false
		return latest
	})
}

// nextVersion locks the rule row, builds the next version from the latest one and inserts it
func (r *PostgresRulesRepository) nextVersion(code string, build func(latest Rule) Rule) (int64, error) {
	t := time.Now().Truncate(1 * time.Millisecond).UTC()
	tx, err := r.conn.Beginx()
	if err != nil {
		return -1, err
	}

	var locked string
	err = tx.QueryRow(`SELECT rule_code FROM rules_v1 WHERE rule_code = $1 FOR UPDATE`, code).Scan(&locked)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return -1, fmt.Errorf("%w: %s", ErrRuleNotFound, code)
	}
	if err != nil {
		tx.Rollback()
		return -1, err
	}

	var version int64
	var data string
	err = tx.QueryRow(`SELECT version_number, data FROM rule_versions_v1
		WHERE rule_code = $1 ORDER BY version_number DESC LIMIT 1`, code).Scan(&version, &data)
	if err != nil {
		tx.Rollback()
		return -1, fmt.Errorf("couldn't retrieve the latest version of rule %s: %s", code, err.Error())
	}
	latest, err := decodeRule(data, version)
	if err != nil {
		tx.Rollback()
		return -1, err
	}

	next := build(latest)
	next.Code = code
	next.Version = version + 1
	if err := insertVersion(tx, next, t); err != nil {
		tx.Rollback()
		return -1, err
	}

	if _, err := tx.Exec(`UPDATE rules_v1 SET last_modified = $1 WHERE rule_code = $2`, t, code); err != nil {
		tx.Rollback()
		return -1, err
	}

	if err := tx.Commit(); err != nil {
		return -1, err
	}
	return next.Version, nil
}

func insertVersion(tx *sqlx.Tx, rule Rule, t time.Time) error {
	ruledata, err := json.Marshal(rule)
	if err != nil {
		return errors.New("failed to marshal the rule " + rule.Code + ": " + err.Error())
	}
	res, err := tx.Exec(`INSERT INTO rule_versions_v1(rule_code, version_number, entry_point, priority, active, data, creation_datetime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rule.Code, rule.Version, rule.EntryPoint, rule.Priority, rule.Active, string(ruledata), t)
	if err != nil {
		return err
	}
	i, err := res.RowsAffected()
	if err != nil {
		return errors.New("error with the affected rows:" + err.Error())
	}
	if i != 1 {
		return errors.New("no row inserted (or multiple row inserted) instead of 1 row")
	}
	return nil
}

func decodeRule(data string, version int64) (Rule, error) {
	var rule Rule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return Rule{}, fmt.Errorf("malformed data, rule version %d: %s", version, err.Error())
	}
	rule.Version = version
	return rule, nil
}

// Get search and returns the latest version of a rule
func (r *PostgresRulesRepository) Get(code string) (Rule, bool, error) {
	query := `select version_number, data from rule_versions_v1
			where rule_code = :code
			order by version_number desc LIMIT 1`
	rows, err := r.conn.NamedQuery(query, map[string]interface{}{
		"code": code,
	})
	if err != nil {
		return Rule{}, false, errors.New("couldn't retrieve the Rule with code: " + code + " : " + err.Error())
	}
	defer rows.Close()

	return scanOne(rows)
}

// GetByVersion search and returns a specific version of a rule
func (r *PostgresRulesRepository) GetByVersion(code string, version int64) (Rule, bool, error) {
	query := `select version_number, data from rule_versions_v1
			where rule_code = :code and version_number = :version`
	rows, err := r.conn.NamedQuery(query, map[string]interface{}{
		"code":    code,
		"version": version,
	})
	if err != nil {
		return Rule{}, false, errors.New("couldn't retrieve the Rule with code: " + code + " : " + err.Error())
	}
	defer rows.Close()

	return scanOne(rows)
}

func scanOne(rows *sqlx.Rows) (Rule, bool, error) {
	if rows.Next() {
		var version int64
		var data string
		if err := rows.Scan(&version, &data); err != nil {
			return Rule{}, false, errors.New("couldn't scan the retrieved data: " + err.Error())
		}
		rule, err := decodeRule(data, version)
		if err != nil {
			return Rule{}, false, err
		}
		return rule, true, nil
	}
	return Rule{}, false, nil
}

func (r *PostgresRulesRepository) latestVersions() sq.SelectBuilder {
	return sq.Select("rule_code", "version_number", "entry_point", "priority", "active", "data").
		Options("DISTINCT ON (rule_code)").
		From("rule_versions_v1").
		OrderBy("rule_code", "version_number DESC")
}

// GetAll returns the latest version of every rule
func (r *PostgresRulesRepository) GetAll() (map[string]Rule, error) {
	rows, err := r.newStatement().
		Select("version_number", "data").
		FromSelect(r.latestVersions(), "latest").
		Query()
	if err != nil {
		return nil, errors.New("couldn't retrieve the rules: " + err.Error())
	}
	defer rows.Close()

	rules := make(map[string]Rule)
	for rows.Next() {
		var version int64
		var data string
		if err := rows.Scan(&version, &data); err != nil {
			return nil, errors.New("couldn't scan the retrieved data: " + err.Error())
		}
		rule, err := decodeRule(data, version)
		if err != nil {
			return nil, err
		}
		rules[rule.Code] = rule
	}
	return rules, rows.Err()
}

// GetAllActive returns the active rules of an entry point in execution order
func (r *PostgresRulesRepository) GetAllActive(entryPoint string) ([]Rule, error) {
	rows, err := r.newStatement().
		Select("version_number", "data").
		FromSelect(r.latestVersions(), "latest").
		Where(sq.Eq{"active": true, "entry_point": entryPoint}).
		OrderBy("priority ASC", "rule_code ASC").
		Query()
	if err != nil {
		return nil, errors.New("couldn't retrieve the active rules of " + entryPoint + ": " + err.Error())
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		var version int64
		var data string
		if err := rows.Scan(&version, &data); err != nil {
			return nil, errors.New("couldn't scan the retrieved data: " + err.Error())
		}
		rule, err := decodeRule(data, version)
		if err != nil {
			zap.L().Error("Skipping corrupt rule version", zap.String("entryPoint", entryPoint), zap.Error(err))
			continue
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// postgres collation may differ from byte order
	Sort(rules)
	return rules, nil
}
