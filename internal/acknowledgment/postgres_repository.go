package acknowledgment

import (
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/jmoiron/sqlx"
)

const table = "acknowledgments_v1"

// PostgresRepository is a repository containing the acknowledgment decisions based on a PSQL database and
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

// Save stores a decision and returns its id
func (r *PostgresRepository) Save(d Decision) (int64, error) {
	if ok, err := d.IsValid(); !ok {
		return -1, err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().Truncate(1 * time.Millisecond).UTC()
	}
	var id int64
	err := r.newStatement().
		Insert(table).
		Columns("ack_key", "scope", "user_id", "session_id", "accepted", "consumed", "created_at").
		Values(d.AckKey, d.Scope, d.UserID, d.SessionID, d.Accepted, false, d.CreatedAt).
		Suffix("RETURNING \"id\"").
		QueryRow().
		Scan(&id)
	if err != nil {
		return -1, err
	}
	return id, nil
}

func subjectFilter(s Subject) sq.Or {
	filter := sq.Or{}
	if s.UserID != "" {
		filter = append(filter,
			sq.Eq{"scope": rule.ScopePerUser, "user_id": s.UserID},
			sq.Eq{"scope": rule.ScopePerOrder, "user_id": s.UserID})
	}
	if s.SessionID != "" {
		filter = append(filter,
			sq.Eq{"scope": rule.ScopePerSession, "session_id": s.SessionID},
			sq.Eq{"scope": rule.ScopePerOrder, "session_id": s.SessionID})
	}
	return filter
}

// GetActive returns the unconsumed decisions concerning a subject, oldest first
func (r *PostgresRepository) GetActive(s Subject) ([]Decision, error) {
	decisions := make([]Decision, 0)
	filter := subjectFilter(s)
	if len(filter) == 0 {
		return decisions, nil
	}
	rows, err := r.newStatement().
		Select("id", "ack_key", "scope", "user_id", "session_id", "accepted", "consumed", "created_at").
		From(table).
		Where(sq.And{sq.Eq{"consumed": false}, filter}).
		OrderBy("created_at ASC", "id ASC").
		Query()
	if err != nil {
		return nil, errors.New("couldn't retrieve the acknowledgments: " + err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.AckKey, &d.Scope, &d.UserID, &d.SessionID, &d.Accepted, &d.Consumed, &d.CreatedAt); err != nil {
			return nil, errors.New("couldn't scan the retrieved data: " + err.Error())
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// ConsumeOrder marks the per_order decisions of a subject as consumed
func (r *PostgresRepository) ConsumeOrder(s Subject) (int64, error) {
	filter := sq.Or{}
	if s.UserID != "" {
		filter = append(filter, sq.Eq{"user_id": s.UserID})
	}
	if s.SessionID != "" {
		filter = append(filter, sq.Eq{"session_id": s.SessionID})
	}
	if len(filter) == 0 {
		return 0, nil
	}
	res, err := r.newStatement().
		Update(table).
		Set("consumed", true).
		Where(sq.And{sq.Eq{"scope": rule.ScopePerOrder, "consumed": false}, filter}).
		Exec()
	if err != nil {
		return -1, err
	}
	return res.RowsAffected()
}
