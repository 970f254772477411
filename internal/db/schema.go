package db

// Table names as constants for type safety.
const (
	TableUsers                = "users"
	TableUserAttributes       = "user_attributes"
	TableAttributeDefinitions = "attribute_definitions"
	TablePolicyRules          = "policy_rules"
	TablePolicyEvaluations    = "policy_evaluations"
)

// Column names shared across stores.
const (
	ColID        = "id"
	ColName      = "name"
	ColIsActive  = "is_active"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"

	// Users
	ColUsername          = "username"
	ColEmail             = "email"
	ColIsSuperAdmin      = "is_super_admin"
	ColDepartmentRoles   = "department_roles"
	ColPrimaryDepartment = "primary_department"

	// User attributes
	ColUserID         = "user_id"
	ColAttributeName  = "attribute_name"
	ColAttributeValue = "attribute_value"
	ColValidFrom      = "valid_from"
	ColValidUntil     = "valid_until"
	ColSetBy          = "set_by"

	// Policy rules
	ColPriority              = "priority"
	ColEffect                = "effect"
	ColSubjectConditions     = "subject_conditions"
	ColResourceModelName     = "resource_model_name"
	ColResourceConditions    = "resource_conditions"
	ColActions               = "actions"
	ColEnvironmentConditions = "environment_conditions"
	ColTimeBasedAccess       = "time_based_access"

	// Policy evaluations
	ColResourceID        = "resource_id"
	ColAction            = "action"
	ColRequestContext    = "request_context"
	ColEvaluatedPolicies = "evaluated_policies"
	ColFinalDecision     = "final_decision"
	ColEvaluationTimeMs  = "evaluation_time_ms"
	ColIPAddress         = "ip_address"
	ColUserAgent         = "user_agent"
	ColErrorMessage      = "error_message"
)
