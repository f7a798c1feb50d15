package audit

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/acted/rules-engine/internal/utils/dbutils"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
)

const table = "rule_executions_v1"

var columns = []string{
	"execution_id", "entry_point", "rule_code", "rule_version", "condition_result",
	"input_context", "output_data", "actions_executed",
	"duration_ms", "condition_evaluation_time_ms", "template_render_time_ms", "action_execution_time_ms",
	"success", "truncated", "error_message", "error_details", "created_at",
}

// PostgresRepository is a repository containing the execution records based on a PSQL database and
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

// Create inserts a new execution record
func (r *PostgresRepository) Create(rec Record) error {
	input, err := jsoniter.Marshal(rec.InputContext)
	if err != nil {
		return errors.New("failed to marshal the input context: " + err.Error())
	}
	output := rec.OutputData
	if len(output) == 0 {
		output = []byte("null")
	}
	actions, err := jsoniter.Marshal(rec.ActionsExecuted)
	if err != nil {
		return errors.New("failed to marshal the executed actions: " + err.Error())
	}
	details, err := jsoniter.Marshal(rec.ErrorDetails)
	if err != nil {
		return errors.New("failed to marshal the error details: " + err.Error())
	}

	res, err := r.newStatement().
		Insert(table).
		Columns(columns...).
		Values(rec.ExecutionID, rec.EntryPoint, rec.RuleCode, rec.RuleVersion, rec.ConditionResult,
			string(input), string(output), string(actions),
			rec.DurationMs, rec.ConditionEvaluationTimeMs, rec.TemplateRenderTimeMs, rec.ActionExecutionTimeMs,
			rec.Success, rec.Truncated, rec.ErrorMessage, string(details), rec.CreatedAt).
		Exec()
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

// Get returns the record of an execution
func (r *PostgresRepository) Get(executionID string) (Record, bool, error) {
	rows, err := r.newStatement().
		Select(columns...).
		From(table).
		Where(sq.Eq{"execution_id": executionID}).
		Query()
	if err != nil {
		return Record{}, false, errors.New("couldn't retrieve the execution " + executionID + ": " + err.Error())
	}
	defer rows.Close()

	return dbutils.ScanFirst(rows, scanRecord)
}

// GetByEntryPoint returns the latest records of an entry point, most recent first
func (r *PostgresRepository) GetByEntryPoint(entryPoint string, limit int) ([]Record, error) {
	builder := r.newStatement().
		Select(columns...).
		From(table).
		Where(sq.Eq{"entry_point": entryPoint}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	rows, err := builder.Query()
	if err != nil {
		return nil, errors.New("couldn't retrieve the executions of " + entryPoint + ": " + err.Error())
	}
	defer rows.Close()

	return dbutils.ScanAll(rows, scanRecord)
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var input, output, actions, details string
	err := rows.Scan(&rec.ExecutionID, &rec.EntryPoint, &rec.RuleCode, &rec.RuleVersion, &rec.ConditionResult,
		&input, &output, &actions,
		&rec.DurationMs, &rec.ConditionEvaluationTimeMs, &rec.TemplateRenderTimeMs, &rec.ActionExecutionTimeMs,
		&rec.Success, &rec.Truncated, &rec.ErrorMessage, &details, &rec.CreatedAt)
	if err != nil {
		return Record{}, errors.New("couldn't scan the retrieved data: " + err.Error())
	}
	if rec.InputContext, err = value.Parse([]byte(input)); err != nil {
		return Record{}, errors.New("malformed input context: " + err.Error())
	}
	rec.OutputData = []byte(output)
	if err := jsoniter.Unmarshal([]byte(actions), &rec.ActionsExecuted); err != nil {
		return Record{}, errors.New("malformed executed actions: " + err.Error())
	}
	if err := jsoniter.Unmarshal([]byte(details), &rec.ErrorDetails); err != nil {
		return Record{}, errors.New("malformed error details: " + err.Error())
	}
	return rec, nil
}
