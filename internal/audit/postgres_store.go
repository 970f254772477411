package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// Store persists evaluation records and serves the audit browsing API.
type Store interface {
	AppendEvaluation(ctx context.Context, record *types.PolicyEvaluation) error
	Query(ctx context.Context, filter QueryFilter) ([]*types.PolicyEvaluation, error)
}

// QueryFilter narrows an audit query. Zero values mean "no constraint".
type QueryFilter struct {
	UserID    string
	ModelName string
	Decision  types.Decision
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// DefaultQueryLimit bounds unconstrained audit queries.
const DefaultQueryLimit = 100

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendEvaluation inserts a single evaluation record.
func (s *PostgresStore) AppendEvaluation(ctx context.Context, record *types.PolicyEvaluation) error {
	contextJSON, err := json.Marshal(record.RequestContext)
	if err != nil {
		return fmt.Errorf("marshal request context: %w", err)
	}
	policiesJSON, err := json.Marshal(record.EvaluatedPolicies)
	if err != nil {
		return fmt.Errorf("marshal evaluated policies: %w", err)
	}

	query := `
		INSERT INTO policy_evaluations (
			id, user_id, resource_model_name, resource_id, action,
			request_context, evaluated_policies, final_decision,
			evaluation_time_ms, created_at, ip_address, user_agent, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Resource.ModelName,
		nullString(record.Resource.ResourceID),
		record.Action,
		contextJSON,
		policiesJSON,
		string(record.FinalDecision),
		record.EvaluationTimeMs,
		record.Timestamp,
		nullString(record.IPAddress),
		nullString(record.UserAgent),
		nullString(record.Error),
	)
	if err != nil {
		return fmt.Errorf("insert evaluation record: %w", err)
	}
	return nil
}

// Query returns evaluation records matching the filter, newest first.
func (s *PostgresStore) Query(ctx context.Context, filter QueryFilter) ([]*types.PolicyEvaluation, error) {
	query := `
		SELECT id, user_id, resource_model_name, resource_id, action,
		       request_context, evaluated_policies, final_decision,
		       evaluation_time_ms, created_at, ip_address, user_agent, error_message
		FROM policy_evaluations
		WHERE 1=1
	`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != "" {
		query += " AND user_id = " + arg(filter.UserID)
	}
	if filter.ModelName != "" {
		query += " AND resource_model_name = " + arg(filter.ModelName)
	}
	if filter.Decision != "" {
		query += " AND final_decision = " + arg(string(filter.Decision))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= " + arg(filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND created_at <= " + arg(filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluation records: %w", err)
	}
	defer rows.Close()

	var records []*types.PolicyEvaluation
	for rows.Next() {
		record, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanEvaluation(rows *sql.Rows) (*types.PolicyEvaluation, error) {
	var (
		record       types.PolicyEvaluation
		resourceID   sql.NullString
		contextJSON  []byte
		policiesJSON []byte
		decision     string
		ipAddress    sql.NullString
		userAgent    sql.NullString
		errorMessage sql.NullString
	)

	err := rows.Scan(
		&record.ID,
		&record.UserID,
		&record.Resource.ModelName,
		&resourceID,
		&record.Action,
		&contextJSON,
		&policiesJSON,
		&decision,
		&record.EvaluationTimeMs,
		&record.Timestamp,
		&ipAddress,
		&userAgent,
		&errorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("scan evaluation record: %w", err)
	}

	record.Resource.ResourceID = resourceID.String
	record.FinalDecision = types.Decision(decision)
	record.IPAddress = ipAddress.String
	record.UserAgent = userAgent.String
	record.Error = errorMessage.String

	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &record.RequestContext); err != nil {
			return nil, fmt.Errorf("unmarshal request context: %w", err)
		}
	}
	if len(policiesJSON) > 0 {
		if err := json.Unmarshal(policiesJSON, &record.EvaluatedPolicies); err != nil {
			return nil, fmt.Errorf("unmarshal evaluated policies: %w", err)
		}
	}
	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
