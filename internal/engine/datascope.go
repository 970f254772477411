package engine

import (
	"context"

	"github.com/campuserp/abac-core/pkg/types"
)

// DefaultScopeAction is the action GetDataScope evaluates when none is given.
const DefaultScopeAction = "read"

// scopeOperators maps condition operators to filter keys. Operators absent
// here (contains, starts_with, ends_with, between, same_as_user,
// different_from_user) are silently dropped from the derived filter even when
// the condition matched; list queries scoped by such policies may therefore
// return more rows than the policy admits. Known gap, kept observable.
var scopeOperators = map[types.Operator]string{
	types.OpEquals:      "eq",
	types.OpNotEquals:   "ne",
	types.OpIn:          "in",
	types.OpNotIn:       "nin",
	types.OpGreaterThan: "gt",
	types.OpLessThan:    "lt",
}

// GetDataScope evaluates access to a resource type as a whole and projects
// the resource conditions of the matching allow policies into a query filter
// for list endpoints. A denied evaluation yields {hasAccess: false} with a
// nil filter; an allow with no translatable conditions yields unrestricted
// access.
func (e *Engine) GetDataScope(ctx context.Context, userID, modelName, action string) *types.DataScope {
	if action == "" {
		action = DefaultScopeAction
	}

	result := e.Evaluate(ctx, &types.EvaluationRequest{
		UserID:   userID,
		Resource: types.ResourceRef{ModelName: modelName},
		Action:   action,
	})

	if result.Decision != types.DecisionAllow {
		return &types.DataScope{HasAccess: false}
	}

	var filter types.Filter
	for _, trace := range result.Policies {
		if !trace.Matched || trace.Effect != types.EffectAllow {
			continue
		}
		for _, cond := range trace.Conditions {
			if cond.Stage != types.StageResource || !cond.Result {
				continue
			}
			key, ok := scopeOperators[cond.Operator]
			if !ok {
				continue
			}
			if filter == nil {
				filter = types.Filter{}
			}
			if filter[cond.Attribute] == nil {
				filter[cond.Attribute] = make(map[string]types.Value)
			}
			filter[cond.Attribute][key] = cond.ExpectedValue
		}
	}

	return &types.DataScope{HasAccess: true, Filter: filter}
}
