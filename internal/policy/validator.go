package policy

import (
	"fmt"
	"regexp"

	"github.com/campuserp/abac-core/pkg/types"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validator checks policy rules before they enter a store. The evaluator
// itself fails closed on malformed conditions; validation exists so authors
// find out at write time instead.
type Validator struct {
	operators map[types.Operator]bool
}

// NewValidator creates a new policy validator.
func NewValidator() *Validator {
	ops := make(map[types.Operator]bool, len(types.Operators))
	for _, op := range types.Operators {
		ops[op] = true
	}
	return &Validator{operators: ops}
}

// ValidateRule validates the structure of one policy rule.
func (v *Validator) ValidateRule(rule *types.PolicyRule) error {
	if rule == nil {
		return fmt.Errorf("policy cannot be nil")
	}
	if rule.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if rule.Resource.ModelName == "" {
		return fmt.Errorf("policy resource.modelName is required")
	}
	if !identifierRe.MatchString(rule.Resource.ModelName) {
		return fmt.Errorf("invalid modelName format: %s", rule.Resource.ModelName)
	}
	if rule.Effect != types.EffectAllow && rule.Effect != types.EffectDeny {
		return fmt.Errorf("invalid effect: %s (must be 'allow' or 'deny')", rule.Effect)
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("policy must have at least one action")
	}
	for _, action := range rule.Actions {
		if action == "" {
			return fmt.Errorf("action cannot be empty")
		}
	}
	if rule.Priority < 0 {
		return fmt.Errorf("priority must be non-negative, got %d", rule.Priority)
	}

	if err := v.validateConditions("subjectConditions", rule.SubjectConditions, false); err != nil {
		return err
	}
	if err := v.validateConditions("resourceConditions", rule.Resource.ResourceConditions, true); err != nil {
		return err
	}
	if err := v.validateConditions("environmentConditions", rule.EnvironmentConditions, false); err != nil {
		return err
	}

	return v.validateTimeBasedAccess(rule.TimeBasedAccess)
}

// validateConditions validates one condition list. The subject-reference
// operators are only legal inside resource condition groups.
func (v *Validator) validateConditions(group string, conds []*types.Condition, allowUserRef bool) error {
	for i, c := range conds {
		if c.Attribute == "" {
			return fmt.Errorf("%s[%d]: attribute is required", group, i)
		}
		if !v.operators[c.Operator] {
			return fmt.Errorf("%s[%d]: unknown operator: %s", group, i, c.Operator)
		}
		if c.LogicalOperator != "" && c.LogicalOperator != types.LogicalAnd && c.LogicalOperator != types.LogicalOr {
			return fmt.Errorf("%s[%d]: invalid logicalOperator: %s", group, i, c.LogicalOperator)
		}

		switch c.Operator {
		case types.OpSameAsUser, types.OpDifferentFromUser:
			if !allowUserRef {
				return fmt.Errorf("%s[%d]: operator %s is only valid in resource conditions", group, i, c.Operator)
			}
			if c.ReferenceUserAttribute == "" {
				return fmt.Errorf("%s[%d]: operator %s requires referenceUserAttribute", group, i, c.Operator)
			}
		case types.OpIn, types.OpNotIn:
			if _, ok := c.Value.AsList(); !ok {
				return fmt.Errorf("%s[%d]: operator %s requires an array value", group, i, c.Operator)
			}
		case types.OpBetween:
			elems, ok := c.Value.AsList()
			if !ok || len(elems) != 2 {
				return fmt.Errorf("%s[%d]: operator between requires a [low, high] value", group, i)
			}
		}
	}
	return nil
}

var hourRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

func (v *Validator) validateTimeBasedAccess(tba *types.TimeBasedAccess) error {
	if tba == nil {
		return nil
	}
	if tba.ValidFrom != nil && tba.ValidUntil != nil && tba.ValidUntil.Before(*tba.ValidFrom) {
		return fmt.Errorf("timeBasedAccess: validUntil precedes validFrom")
	}
	for i, h := range tba.AllowedHours {
		if !hourRe.MatchString(h.Start) {
			return fmt.Errorf("timeBasedAccess.allowedHours[%d]: invalid start %q (expected HH:MM)", i, h.Start)
		}
		if !hourRe.MatchString(h.End) {
			return fmt.Errorf("timeBasedAccess.allowedHours[%d]: invalid end %q (expected HH:MM)", i, h.End)
		}
	}
	return nil
}
