package attribute

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// PostgresStore implements UserStore, Store and DefinitionStore using
// PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL attribute store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUser retrieves a user record by id.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	query := `
		SELECT id, username, email, is_super_admin, is_active,
		       department_roles, primary_department
		FROM users
		WHERE id = $1
	`

	var user types.User
	var rolesJSON []byte
	var primaryDept sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.IsSuperAdmin,
		&user.IsActive,
		&rolesJSON,
		&primaryDept,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &user.DepartmentRoles); err != nil {
			return nil, fmt.Errorf("decode department roles: %w", err)
		}
	}
	user.PrimaryDepartment = primaryDept.String

	return &user, nil
}

// FindActiveUserAttributes returns the attributes effective at asOf.
func (s *PostgresStore) FindActiveUserAttributes(ctx context.Context, userID string, asOf time.Time) ([]*types.UserAttribute, error) {
	query := `
		SELECT user_id, attribute_name, attribute_value,
		       valid_from, valid_until, is_active, set_by, updated_at
		FROM user_attributes
		WHERE user_id = $1
		  AND is_active = TRUE
		  AND (valid_until IS NULL OR valid_until >= $2)
		ORDER BY attribute_name
	`

	rows, err := s.db.QueryContext(ctx, query, userID, asOf)
	if err != nil {
		return nil, fmt.Errorf("query user attributes: %w", err)
	}
	defer rows.Close()

	return scanUserAttributes(rows)
}

// Upsert creates or replaces the attribute keyed by (userId, attributeName).
func (s *PostgresStore) Upsert(ctx context.Context, attr *types.UserAttribute) error {
	valueJSON, err := json.Marshal(attr.AttributeValue)
	if err != nil {
		return fmt.Errorf("encode attribute value: %w", err)
	}

	query := `
		INSERT INTO user_attributes (
			user_id, attribute_name, attribute_value,
			valid_from, valid_until, is_active, set_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, attribute_name) DO UPDATE SET
			attribute_value = EXCLUDED.attribute_value,
			valid_from      = EXCLUDED.valid_from,
			valid_until     = EXCLUDED.valid_until,
			is_active       = EXCLUDED.is_active,
			set_by          = EXCLUDED.set_by,
			updated_at      = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		attr.UserID,
		attr.AttributeName,
		valueJSON,
		attr.ValidFrom,
		attr.ValidUntil,
		attr.IsActive,
		nullString(attr.SetBy),
	)
	if err != nil {
		return fmt.Errorf("upsert user attribute: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an attribute row.
func (s *PostgresStore) Deactivate(ctx context.Context, userID, attributeName string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_attributes
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND attribute_name = $2
	`, userID, attributeName)
	if err != nil {
		return fmt.Errorf("deactivate user attribute: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attribute not found: %s/%s", userID, attributeName)
	}
	return nil
}

// ListForUser returns every attribute row for a user, active or not.
func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]*types.UserAttribute, error) {
	query := `
		SELECT user_id, attribute_name, attribute_value,
		       valid_from, valid_until, is_active, set_by, updated_at
		FROM user_attributes
		WHERE user_id = $1
		ORDER BY attribute_name
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user attributes: %w", err)
	}
	defer rows.Close()

	return scanUserAttributes(rows)
}

// GetDefinition retrieves a definition by attribute name.
func (s *PostgresStore) GetDefinition(ctx context.Context, name string) (*types.AttributeDefinition, error) {
	query := `
		SELECT name, display_name, data_type, category, reference_model,
		       possible_values, is_required, is_active, validation
		FROM attribute_definitions
		WHERE name = $1
	`

	def, err := scanDefinition(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attribute definition not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("query attribute definition: %w", err)
	}
	return def, nil
}

// ListDefinitions returns all attribute definitions.
func (s *PostgresStore) ListDefinitions(ctx context.Context) ([]*types.AttributeDefinition, error) {
	query := `
		SELECT name, display_name, data_type, category, reference_model,
		       possible_values, is_required, is_active, validation
		FROM attribute_definitions
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query attribute definitions: %w", err)
	}
	defer rows.Close()

	var defs []*types.AttributeDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribute definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// SaveDefinition creates or replaces a definition keyed by name.
func (s *PostgresStore) SaveDefinition(ctx context.Context, def *types.AttributeDefinition) error {
	valuesJSON, err := json.Marshal(def.PossibleValues)
	if err != nil {
		return fmt.Errorf("encode possible values: %w", err)
	}
	var validationJSON []byte
	if def.Validation != nil {
		validationJSON, err = json.Marshal(def.Validation)
		if err != nil {
			return fmt.Errorf("encode validation: %w", err)
		}
	}

	query := `
		INSERT INTO attribute_definitions (
			name, display_name, data_type, category, reference_model,
			possible_values, is_required, is_active, validation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			display_name    = EXCLUDED.display_name,
			data_type       = EXCLUDED.data_type,
			category        = EXCLUDED.category,
			reference_model = EXCLUDED.reference_model,
			possible_values = EXCLUDED.possible_values,
			is_required     = EXCLUDED.is_required,
			is_active       = EXCLUDED.is_active,
			validation      = EXCLUDED.validation
	`

	_, err = s.db.ExecContext(ctx, query,
		def.Name,
		def.DisplayName,
		string(def.DataType),
		string(def.Category),
		nullString(def.ReferenceModel),
		valuesJSON,
		def.IsRequired,
		def.IsActive,
		validationJSON,
	)
	if err != nil {
		return fmt.Errorf("save attribute definition: %w", err)
	}
	return nil
}

// DeactivateDefinition soft-deletes a definition.
func (s *PostgresStore) DeactivateDefinition(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attribute_definitions SET is_active = FALSE WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("deactivate attribute definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attribute definition not found: %s", name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserAttributes(rows *sql.Rows) ([]*types.UserAttribute, error) {
	var attrs []*types.UserAttribute
	for rows.Next() {
		var attr types.UserAttribute
		var valueJSON []byte
		var validUntil sql.NullTime
		var setBy sql.NullString

		err := rows.Scan(
			&attr.UserID,
			&attr.AttributeName,
			&valueJSON,
			&attr.ValidFrom,
			&validUntil,
			&attr.IsActive,
			&setBy,
			&attr.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user attribute: %w", err)
		}

		if err := json.Unmarshal(valueJSON, &attr.AttributeValue); err != nil {
			return nil, fmt.Errorf("decode attribute value: %w", err)
		}
		if validUntil.Valid {
			t := validUntil.Time
			attr.ValidUntil = &t
		}
		attr.SetBy = setBy.String

		attrs = append(attrs, &attr)
	}
	return attrs, rows.Err()
}

func scanDefinition(row rowScanner) (*types.AttributeDefinition, error) {
	var def types.AttributeDefinition
	var refModel sql.NullString
	var valuesJSON, validationJSON []byte

	err := row.Scan(
		&def.Name,
		&def.DisplayName,
		&def.DataType,
		&def.Category,
		&refModel,
		&valuesJSON,
		&def.IsRequired,
		&def.IsActive,
		&validationJSON,
	)
	if err != nil {
		return nil, err
	}

	def.ReferenceModel = refModel.String
	if len(valuesJSON) > 0 {
		if err := json.Unmarshal(valuesJSON, &def.PossibleValues); err != nil {
			return nil, fmt.Errorf("decode possible values: %w", err)
		}
	}
	if len(validationJSON) > 0 {
		if err := json.Unmarshal(validationJSON, &def.Validation); err != nil {
			return nil, fmt.Errorf("decode validation: %w", err)
		}
	}

	return &def, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
