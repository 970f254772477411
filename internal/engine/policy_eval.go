package engine

import (
	"time"

	"github.com/campuserp/abac-core/internal/attribute"
	"github.com/campuserp/abac-core/internal/condition"
	"github.com/campuserp/abac-core/pkg/types"
)

// evaluatePolicy runs one policy's checks in sequence: subject conditions,
// resource conditions, environment conditions, then the time window. The
// first failing stage short-circuits, keeping the trace entries already
// collected; Matched is true only when all four stages pass.
func (e *Engine) evaluatePolicy(rule *types.PolicyRule, bag condition.Bag, req *types.EvaluationRequest, now time.Time) *types.PolicyTrace {
	trace := &types.PolicyTrace{
		PolicyID:   rule.ID,
		PolicyName: rule.Name,
		Effect:     rule.Effect,
		Conditions: []types.ConditionTrace{},
	}

	subject := condition.EvaluateGroup(rule.SubjectConditions, bag, types.StageSubject, nil)
	trace.Conditions = append(trace.Conditions, subject.Trace...)
	if !subject.Matched {
		return trace
	}

	// Resource conditions run against the resource instance; the subject bag
	// is passed alongside so same_as_user / different_from_user can compare
	// resource fields to subject attributes.
	resource := condition.EvaluateGroup(rule.Resource.ResourceConditions, resourceBag(req.Resource), types.StageResource, bag)
	trace.Conditions = append(trace.Conditions, resource.Trace...)
	if !resource.Matched {
		return trace
	}

	environment := condition.EvaluateGroup(rule.EnvironmentConditions, environmentBag(bag, req.Context, now), types.StageEnvironment, nil)
	trace.Conditions = append(trace.Conditions, environment.Trace...)
	if !environment.Matched {
		return trace
	}

	if !timeWindowMatches(rule.TimeBasedAccess, now) {
		return trace
	}

	trace.Matched = true
	return trace
}

// resourceBag exposes the resource instance's fields for condition matching.
// The id is addressable as "resourceId" unless the instance carries its own.
func resourceBag(res types.ResourceRef) condition.Bag {
	bag := make(condition.Bag, len(res.Fields)+1)
	for name, v := range res.Fields {
		bag[name] = v
	}
	if res.ResourceID != "" {
		if _, ok := bag["resourceId"]; !ok {
			bag["resourceId"] = types.String(res.ResourceID)
		}
	}
	return bag
}

// environmentBag merges the subject bag, the computed time attributes and the
// request context, in that order, so environment conditions can reference
// subject attributes and callers can override time facts for testing
// policies.
func environmentBag(bag condition.Bag, reqCtx map[string]types.Value, now time.Time) condition.Bag {
	env := make(condition.Bag, len(bag)+len(reqCtx)+3)
	for name, v := range bag {
		env[name] = v
	}
	for name, v := range attribute.TimeAttributes(now) {
		env[name] = v
	}
	for name, v := range reqCtx {
		env[name] = v
	}
	return env
}
