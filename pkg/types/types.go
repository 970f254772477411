// Package types provides shared types for the ABAC decision core.
package types

import (
	"time"
)

// Effect is the outcome a matching policy asserts.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Decision is the final outcome of an evaluation. Indeterminate appears only
// in audit records, when a store failure forced the returned decision to deny.
type Decision string

const (
	DecisionAllow         Decision = "allow"
	DecisionDeny          Decision = "deny"
	DecisionIndeterminate Decision = "indeterminate"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals            Operator = "equals"
	OpNotEquals         Operator = "not_equals"
	OpIn                Operator = "in"
	OpNotIn             Operator = "not_in"
	OpContains          Operator = "contains"
	OpStartsWith        Operator = "starts_with"
	OpEndsWith          Operator = "ends_with"
	OpGreaterThan       Operator = "greater_than"
	OpLessThan          Operator = "less_than"
	OpBetween           Operator = "between"
	OpSameAsUser        Operator = "same_as_user"
	OpDifferentFromUser Operator = "different_from_user"
)

// Operators lists every recognized operator, in authoring-UI order.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains,
	OpStartsWith, OpEndsWith, OpGreaterThan, OpLessThan, OpBetween,
	OpSameAsUser, OpDifferentFromUser,
}

// LogicalOperator describes how a condition combines with the next condition
// in its list.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition is one atomic test inside a policy rule.
type Condition struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     Value    `json:"value,omitempty" yaml:"value,omitempty"`
	// ReferenceUserAttribute names the subject attribute compared against by
	// same_as_user / different_from_user; Value is ignored for those.
	ReferenceUserAttribute string          `json:"referenceUserAttribute,omitempty" yaml:"referenceUserAttribute,omitempty"`
	LogicalOperator        LogicalOperator `json:"logicalOperator,omitempty" yaml:"logicalOperator,omitempty"`
}

// HourRange is an allowed window within a day, bounds given as "HH:MM".
// Only the hour component participates in the comparison.
type HourRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// TimeBasedAccess restricts when a policy is applicable.
type TimeBasedAccess struct {
	ValidFrom    *time.Time  `json:"validFrom,omitempty" yaml:"validFrom,omitempty"`
	ValidUntil   *time.Time  `json:"validUntil,omitempty" yaml:"validUntil,omitempty"`
	AllowedDays  []string    `json:"allowedDays,omitempty" yaml:"allowedDays,omitempty"`
	AllowedHours []HourRange `json:"allowedHours,omitempty" yaml:"allowedHours,omitempty"`
}

// ResourceSpec identifies the resource type a policy targets and the
// conditions its instances must satisfy.
type ResourceSpec struct {
	ModelName          string       `json:"modelName" yaml:"modelName"`
	ResourceConditions []*Condition `json:"resourceConditions,omitempty" yaml:"resourceConditions,omitempty"`
}

// PolicyRule is one prioritized ABAC rule. Read-only to the evaluator;
// authored through the admin API or policy files.
type PolicyRule struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Priority orders evaluation; lower values are evaluated earlier.
	Priority              int              `json:"priority" yaml:"priority"`
	IsActive              bool             `json:"isActive" yaml:"isActive"`
	Effect                Effect           `json:"effect" yaml:"effect"`
	SubjectConditions     []*Condition     `json:"subjectConditions,omitempty" yaml:"subjectConditions,omitempty"`
	Resource              ResourceSpec     `json:"resource" yaml:"resource"`
	Actions               []string         `json:"actions" yaml:"actions"`
	EnvironmentConditions []*Condition     `json:"environmentConditions,omitempty" yaml:"environmentConditions,omitempty"`
	TimeBasedAccess       *TimeBasedAccess `json:"timeBasedAccess,omitempty" yaml:"timeBasedAccess,omitempty"`
	CreatedAt             time.Time        `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt             time.Time        `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// MatchesAction reports whether the rule covers an action.
func (p *PolicyRule) MatchesAction(action string) bool {
	for _, a := range p.Actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

// ConditionStage tags which condition group a trace entry came from.
type ConditionStage string

const (
	StageSubject     ConditionStage = "subject"
	StageResource    ConditionStage = "resource"
	StageEnvironment ConditionStage = "environment"
)

// ConditionTrace records one condition evaluation for audit and for the
// policy-test display.
type ConditionTrace struct {
	Stage         ConditionStage `json:"stage"`
	Attribute     string         `json:"attribute"`
	Operator      Operator       `json:"operator"`
	ExpectedValue Value          `json:"expectedValue"`
	ActualValue   Value          `json:"actualValue"`
	Result        bool           `json:"result"`
}

// PolicyTrace records the outcome of evaluating one candidate policy.
type PolicyTrace struct {
	PolicyID   string           `json:"policyId"`
	PolicyName string           `json:"policyName"`
	Matched    bool             `json:"matched"`
	Effect     Effect           `json:"effect"`
	Conditions []ConditionTrace `json:"conditions"`
}

// ResourceRef identifies the resource instance under evaluation. Fields holds
// the instance's attributes for resource-condition matching.
type ResourceRef struct {
	ModelName  string           `json:"modelName"`
	ResourceID string           `json:"resourceId,omitempty"`
	Fields     map[string]Value `json:"fields,omitempty"`
}

// EvaluationRequest is the input to Engine.Evaluate.
type EvaluationRequest struct {
	UserID    string           `json:"userId"`
	Resource  ResourceRef      `json:"resource"`
	Action    string           `json:"action"`
	Context   map[string]Value `json:"context,omitempty"`
	IPAddress string           `json:"ipAddress,omitempty"`
	UserAgent string           `json:"userAgent,omitempty"`
}

// EvaluationResult is the output of Engine.Evaluate. A non-empty Error means
// the decision was forced to deny by a store failure; callers must treat it
// identically to a policy-driven deny.
type EvaluationResult struct {
	Decision         Decision       `json:"decision"`
	Policies         []*PolicyTrace `json:"policies"`
	EvaluationTimeMs float64        `json:"evaluationTimeMs"`
	Error            string         `json:"error,omitempty"`
}

// PolicyEvaluation is the append-only audit record of one evaluation.
type PolicyEvaluation struct {
	ID                string           `json:"id"`
	UserID            string           `json:"userId"`
	Resource          ResourceRef      `json:"resource"`
	Action            string           `json:"action"`
	RequestContext    map[string]Value `json:"requestContext,omitempty"`
	EvaluatedPolicies []*PolicyTrace   `json:"evaluatedPolicies"`
	FinalDecision     Decision         `json:"finalDecision"`
	EvaluationTimeMs  float64          `json:"evaluationTimeMs"`
	Timestamp         time.Time        `json:"timestamp"`
	IPAddress         string           `json:"ipAddress,omitempty"`
	UserAgent         string           `json:"userAgent,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Filter is the data-scope projection: attribute name -> operator key
// (eq, ne, in, nin, gt, lt) -> expected value.
type Filter map[string]map[string]Value

// DataScope is the result of GetDataScope, consumed by list-query callers.
type DataScope struct {
	HasAccess bool   `json:"hasAccess"`
	Filter    Filter `json:"filter"`
}

// DataType constrains the shape of an attribute's values.
type DataType string

const (
	DataTypeString    DataType = "string"
	DataTypeNumber    DataType = "number"
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
	DataTypeReference DataType = "reference"
	DataTypeArray     DataType = "array"
)

// AttributeCategory groups attributes by where they are resolved from.
type AttributeCategory string

const (
	CategoryUser        AttributeCategory = "user"
	CategoryResource    AttributeCategory = "resource"
	CategoryEnvironment AttributeCategory = "environment"
	CategoryContext     AttributeCategory = "context"
)

// AttributeValidation is an optional numeric range or pattern constraint
// applied when attribute values are authored.
type AttributeValidation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// AttributeDefinition declares the vocabulary conditions may reference.
// Evaluation itself is duck-typed against whatever bag is supplied; the
// definition governs what the authoring UI offers.
type AttributeDefinition struct {
	Name           string               `json:"name"`
	DisplayName    string               `json:"displayName"`
	DataType       DataType             `json:"dataType"`
	Category       AttributeCategory    `json:"category"`
	ReferenceModel string               `json:"referenceModel,omitempty"`
	PossibleValues []Value              `json:"possibleValues,omitempty"`
	IsRequired     bool                 `json:"isRequired"`
	IsActive       bool                 `json:"isActive"`
	Validation     *AttributeValidation `json:"validation,omitempty"`
}

// UserAttribute is one stored attribute assignment, keyed by
// (userId, attributeName). Expiry is implicit: once ValidUntil passes the row
// is excluded from resolution even if IsActive is still true.
type UserAttribute struct {
	UserID         string     `json:"userId"`
	AttributeName  string     `json:"attributeName"`
	AttributeValue Value      `json:"attributeValue"`
	ValidFrom      time.Time  `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
	IsActive       bool       `json:"isActive"`
	SetBy          string     `json:"setBy,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt,omitempty"`
}

// EffectiveAt reports whether the attribute contributes to resolution at the
// given instant.
func (a *UserAttribute) EffectiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ValidUntil != nil && a.ValidUntil.Before(now) {
		return false
	}
	return true
}

// DepartmentRole is one role a user holds within a department.
type DepartmentRole struct {
	DepartmentID string `json:"departmentId"`
	Role         string `json:"role"`
}

// User is the subject record consumed by the attribute resolver.
type User struct {
	ID                string           `json:"id"`
	Username          string           `json:"username"`
	Email             string           `json:"email"`
	IsSuperAdmin      bool             `json:"isSuperAdmin"`
	IsActive          bool             `json:"isActive"`
	DepartmentRoles   []DepartmentRole `json:"departmentRoles,omitempty"`
	PrimaryDepartment string           `json:"primaryDepartment,omitempty"`
}
