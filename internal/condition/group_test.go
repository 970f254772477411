package condition

import (
	"testing"

	"github.com/campuserp/abac-core/pkg/types"
)

func cond(attr string, op types.Operator, v types.Value) *types.Condition {
	return &types.Condition{Attribute: attr, Operator: op, Value: v}
}

func orCond(attr string, op types.Operator, v types.Value) *types.Condition {
	c := cond(attr, op, v)
	c.LogicalOperator = types.LogicalOr
	return c
}

func TestEvaluateGroupEmpty(t *testing.T) {
	res := EvaluateGroup(nil, Bag{}, types.StageSubject, nil)
	if !res.Matched {
		t.Error("empty group should match trivially")
	}
	if len(res.Trace) != 0 {
		t.Errorf("empty group should produce no trace, got %d entries", len(res.Trace))
	}
}

func TestEvaluateGroupAllAnd(t *testing.T) {
	bag := Bag{
		"department": types.String("cse"),
		"role":       types.String("hod"),
	}
	conds := []*types.Condition{
		cond("department", types.OpEquals, types.String("cse")),
		cond("role", types.OpEquals, types.String("hod")),
	}

	res := EvaluateGroup(conds, bag, types.StageSubject, nil)
	if !res.Matched {
		t.Error("all-true AND group should match")
	}
	if len(res.Trace) != 2 {
		t.Errorf("expected 2 trace entries, got %d", len(res.Trace))
	}
}

func TestEvaluateGroupAndShortCircuits(t *testing.T) {
	bag := Bag{"department": types.String("ece")}
	conds := []*types.Condition{
		cond("department", types.OpEquals, types.String("cse")),
		cond("role", types.OpEquals, types.String("hod")),
	}

	res := EvaluateGroup(conds, bag, types.StageSubject, nil)
	if res.Matched {
		t.Error("failed AND condition should fail the group")
	}
	if len(res.Trace) != 1 {
		t.Errorf("AND failure should halt the scan, got %d trace entries", len(res.Trace))
	}
}

func TestEvaluateGroupOrShortCircuits(t *testing.T) {
	bag := Bag{"role": types.String("dean")}
	conds := []*types.Condition{
		orCond("role", types.OpEquals, types.String("dean")),
		cond("department", types.OpEquals, types.String("cse")),
	}

	res := EvaluateGroup(conds, bag, types.StageSubject, nil)
	if !res.Matched {
		t.Error("true OR condition should match the group immediately")
	}
	if len(res.Trace) != 1 {
		t.Errorf("OR success should halt the scan, got %d trace entries", len(res.Trace))
	}
}

// A failed OR condition carries the running result forward, so a group of a
// single failed OR condition still matches. The authoring system behaves this
// way and policies in the field depend on it.
func TestEvaluateGroupLoneFailedOrStillMatches(t *testing.T) {
	bag := Bag{"role": types.String("faculty")}
	conds := []*types.Condition{
		orCond("role", types.OpEquals, types.String("dean")),
	}

	res := EvaluateGroup(conds, bag, types.StageSubject, nil)
	if !res.Matched {
		t.Error("lone failed OR condition should leave the group matched")
	}
}

// Mixed AND/OR lists are order-dependent: the same conditions in a different
// order produce a different result.
func TestEvaluateGroupOrderDependence(t *testing.T) {
	bag := Bag{
		"department": types.String("ece"),
		"role":       types.String("dean"),
	}

	failingAnd := cond("department", types.OpEquals, types.String("cse"))
	passingOr := orCond("role", types.OpEquals, types.String("dean"))

	// AND first: the failed AND halts the group before the OR is seen.
	res := EvaluateGroup([]*types.Condition{failingAnd, passingOr}, bag, types.StageSubject, nil)
	if res.Matched {
		t.Error("failed AND before OR should fail the group")
	}

	// OR first: the passing OR short-circuits to true.
	res = EvaluateGroup([]*types.Condition{passingOr, failingAnd}, bag, types.StageSubject, nil)
	if !res.Matched {
		t.Error("passing OR before AND should match the group")
	}
}

func TestEvaluateGroupMissingAttributeReadsNull(t *testing.T) {
	conds := []*types.Condition{
		cond("clearance", types.OpEquals, types.Null()),
	}
	res := EvaluateGroup(conds, Bag{}, types.StageSubject, nil)
	if !res.Matched {
		t.Error("missing attribute should read as null and equal a null expectation")
	}
}

func TestEvaluateGroupResourceStageDefersMissingFields(t *testing.T) {
	conds := []*types.Condition{
		cond("departmentId", types.OpEquals, types.String("D1")),
	}

	// No departmentId in the resource bag: deferred, group matches.
	res := EvaluateGroup(conds, Bag{}, types.StageResource, Bag{})
	if !res.Matched {
		t.Error("resource condition on an absent field should defer and match")
	}
	if len(res.Trace) != 1 || !res.Trace[0].Result {
		t.Error("deferred condition should trace with result true")
	}

	// Field present: strict comparison applies.
	res = EvaluateGroup(conds, Bag{"departmentId": types.String("D2")}, types.StageResource, Bag{})
	if res.Matched {
		t.Error("present field should compare strictly and fail")
	}

	// Subject stage never defers.
	res = EvaluateGroup(conds, Bag{}, types.StageSubject, nil)
	if res.Matched {
		t.Error("subject condition on a missing attribute should fail")
	}
}

func TestEvaluateGroupSameAsUser(t *testing.T) {
	subjectBag := Bag{"departmentId": types.String("cse")}
	resourceBag := Bag{"departmentId": types.String("cse")}

	conds := []*types.Condition{
		{
			Attribute:              "departmentId",
			Operator:               types.OpSameAsUser,
			ReferenceUserAttribute: "departmentId",
		},
	}

	res := EvaluateGroup(conds, resourceBag, types.StageResource, subjectBag)
	if !res.Matched {
		t.Error("same_as_user should match when resource and subject attributes agree")
	}

	resourceBag["departmentId"] = types.String("ece")
	res = EvaluateGroup(conds, resourceBag, types.StageResource, subjectBag)
	if res.Matched {
		t.Error("same_as_user should fail when attributes differ")
	}

	// Outside resource groups the operator is unrecognized and fails.
	res = EvaluateGroup(conds, resourceBag, types.StageSubject, nil)
	if res.Matched {
		t.Error("same_as_user without a subject bag should fail")
	}
}

func TestEvaluateGroupDifferentFromUser(t *testing.T) {
	subjectBag := Bag{"userId": types.String("u-1")}
	resourceBag := Bag{"ownerId": types.String("u-2")}

	conds := []*types.Condition{
		{
			Attribute:              "ownerId",
			Operator:               types.OpDifferentFromUser,
			ReferenceUserAttribute: "userId",
		},
	}

	res := EvaluateGroup(conds, resourceBag, types.StageResource, subjectBag)
	if !res.Matched {
		t.Error("different_from_user should match when values differ")
	}

	resourceBag["ownerId"] = types.String("u-1")
	res = EvaluateGroup(conds, resourceBag, types.StageResource, subjectBag)
	if res.Matched {
		t.Error("different_from_user should fail when values agree")
	}
}
