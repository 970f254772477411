package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/campuserp/abac-core/pkg/types"
)

// PostgresStore implements Store using PostgreSQL. Condition lists and the
// time window are stored as JSONB; the candidate filter runs in SQL except
// for the validity interval, which lives inside the JSONB document and is
// applied after scanning.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `
	id, name, description, priority, is_active, effect,
	subject_conditions, resource_model_name, resource_conditions,
	actions, environment_conditions, time_based_access,
	created_at, updated_at
`

// Get retrieves a policy rule by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.PolicyRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policy_rules WHERE id = $1`, id)

	rule, err := scanPolicyRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query policy: %w", err)
	}
	return rule, nil
}

// GetAll retrieves all policy rules in creation order.
func (s *PostgresStore) GetAll(ctx context.Context) ([]*types.PolicyRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policy_rules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	return scanPolicyRules(rows)
}

// FindCandidatePolicies returns active rules for (modelName, action) ordered
// by priority, creation-order ties.
func (s *PostgresStore) FindCandidatePolicies(ctx context.Context, modelName, action string, asOf time.Time) ([]*types.PolicyRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+policyColumns+`
		FROM policy_rules
		WHERE is_active = TRUE
		  AND resource_model_name = $1
		  AND ($2 = ANY(actions) OR '*' = ANY(actions))
		ORDER BY priority, created_at, id
	`, modelName, action)
	if err != nil {
		return nil, fmt.Errorf("query candidate policies: %w", err)
	}
	defer rows.Close()

	rules, err := scanPolicyRules(rows)
	if err != nil {
		return nil, err
	}

	out := rules[:0]
	for _, rule := range rules {
		if withinValidity(rule, asOf) {
			out = append(out, rule)
		}
	}
	return out, nil
}

// Create inserts a new policy rule, assigning an id when absent.
func (s *PostgresStore) Create(ctx context.Context, rule *types.PolicyRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	rule.UpdatedAt = rule.CreatedAt

	subj, res, env, tba, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_rules (
			id, name, description, priority, is_active, effect,
			subject_conditions, resource_model_name, resource_conditions,
			actions, environment_conditions, time_based_access,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rule.ID, rule.Name, rule.Description, rule.Priority, rule.IsActive,
		string(rule.Effect), subj, rule.Resource.ModelName, res,
		pq.Array(rule.Actions), env, tba, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// Update replaces an existing policy rule by id.
func (s *PostgresStore) Update(ctx context.Context, rule *types.PolicyRule) error {
	rule.UpdatedAt = time.Now()

	subj, res, env, tba, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE policy_rules SET
			name = $2, description = $3, priority = $4, is_active = $5,
			effect = $6, subject_conditions = $7, resource_model_name = $8,
			resource_conditions = $9, actions = $10,
			environment_conditions = $11, time_based_access = $12,
			updated_at = $13
		WHERE id = $1
	`,
		rule.ID, rule.Name, rule.Description, rule.Priority, rule.IsActive,
		string(rule.Effect), subj, rule.Resource.ModelName, res,
		pq.Array(rule.Actions), env, tba, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("policy not found: %s", rule.ID)
	}
	return nil
}

// Deactivate soft-deletes a policy rule.
func (s *PostgresStore) Deactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE policy_rules SET is_active = FALSE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate policy: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("policy not found: %s", id)
	}
	return nil
}

// Count returns the number of stored rules.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count policies: %w", err)
	}
	return n, nil
}

func encodeRuleJSON(rule *types.PolicyRule) (subj, res, env, tba []byte, err error) {
	if subj, err = json.Marshal(rule.SubjectConditions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode subject conditions: %w", err)
	}
	if res, err = json.Marshal(rule.Resource.ResourceConditions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode resource conditions: %w", err)
	}
	if env, err = json.Marshal(rule.EnvironmentConditions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode environment conditions: %w", err)
	}
	if rule.TimeBasedAccess != nil {
		if tba, err = json.Marshal(rule.TimeBasedAccess); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode time based access: %w", err)
		}
	}
	return subj, res, env, tba, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicyRule(row rowScanner) (*types.PolicyRule, error) {
	var rule types.PolicyRule
	var description sql.NullString
	var subj, res, env, tba []byte
	var actions pq.StringArray

	err := row.Scan(
		&rule.ID, &rule.Name, &description, &rule.Priority, &rule.IsActive,
		&rule.Effect, &subj, &rule.Resource.ModelName, &res,
		&actions, &env, &tba, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Actions = actions
	if len(subj) > 0 {
		if err := json.Unmarshal(subj, &rule.SubjectConditions); err != nil {
			return nil, fmt.Errorf("decode subject conditions: %w", err)
		}
	}
	if len(res) > 0 {
		if err := json.Unmarshal(res, &rule.Resource.ResourceConditions); err != nil {
			return nil, fmt.Errorf("decode resource conditions: %w", err)
		}
	}
	if len(env) > 0 {
		if err := json.Unmarshal(env, &rule.EnvironmentConditions); err != nil {
			return nil, fmt.Errorf("decode environment conditions: %w", err)
		}
	}
	if len(tba) > 0 {
		if err := json.Unmarshal(tba, &rule.TimeBasedAccess); err != nil {
			return nil, fmt.Errorf("decode time based access: %w", err)
		}
	}

	return &rule, nil
}

func scanPolicyRules(rows *sql.Rows) ([]*types.PolicyRule, error) {
	var rules []*types.PolicyRule
	for rows.Next() {
		rule, err := scanPolicyRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
