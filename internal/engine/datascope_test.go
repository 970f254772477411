package engine

import (
	"context"
	"testing"

	"github.com/campuserp/abac-core/pkg/types"
)

func TestGetDataScopeProjectsEqualsCondition(t *testing.T) {
	allow := allowRule("dept-scope", 1)
	allow.Resource.ResourceConditions = []*types.Condition{
		{Attribute: "departmentId", Operator: types.OpEquals, Value: types.String("D1")},
	}
	eng, _ := newTestEngine(t, []*types.PolicyRule{allow}, nil)

	scope := eng.GetDataScope(context.Background(), "u-1", "course", "read")
	if !scope.HasAccess {
		t.Fatal("expected access")
	}
	clause, ok := scope.Filter["departmentId"]
	if !ok {
		t.Fatalf("filter missing departmentId, got %v", scope.Filter)
	}
	if got := clause["eq"]; !got.Equal(types.String("D1")) {
		t.Errorf("filter departmentId.eq = %v, want D1", got)
	}
}

func TestGetDataScopeOperatorMapping(t *testing.T) {
	tests := []struct {
		op  types.Operator
		key string
	}{
		{types.OpEquals, "eq"},
		{types.OpNotEquals, "ne"},
		{types.OpIn, "in"},
		{types.OpNotIn, "nin"},
		{types.OpGreaterThan, "gt"},
		{types.OpLessThan, "lt"},
	}
	for _, tt := range tests {
		allow := allowRule("scope", 1)
		value := types.String("x")
		if tt.op == types.OpIn || tt.op == types.OpNotIn {
			value = types.StringList([]string{"x"})
		}
		allow.Resource.ResourceConditions = []*types.Condition{
			{Attribute: "field", Operator: tt.op, Value: value},
		}
		eng, _ := newTestEngine(t, []*types.PolicyRule{allow}, nil)

		scope := eng.GetDataScope(context.Background(), "u-1", "course", "read")
		if !scope.HasAccess {
			t.Fatalf("%s: expected access", tt.op)
		}
		if _, ok := scope.Filter["field"][tt.key]; !ok {
			t.Errorf("%s: filter key %q absent, got %v", tt.op, tt.key, scope.Filter)
		}
	}
}

func TestGetDataScopeDropsUntranslatableOperators(t *testing.T) {
	// contains matches (the field is absent from the type-level probe) but has
	// no filter-key mapping, so the scope stays unrestricted.
	allow := allowRule("name-scope", 1)
	allow.Resource.ResourceConditions = []*types.Condition{
		{Attribute: "courseName", Operator: types.OpContains, Value: types.String("intro")},
	}
	eng, _ := newTestEngine(t, []*types.PolicyRule{allow}, nil)

	scope := eng.GetDataScope(context.Background(), "u-1", "course", "read")
	if !scope.HasAccess {
		t.Fatal("expected access")
	}
	if scope.Filter != nil {
		t.Errorf("filter = %v, want nil (contains is not projectable)", scope.Filter)
	}
}

func TestGetDataScopeDenied(t *testing.T) {
	eng, _ := newTestEngine(t, []*types.PolicyRule{denyRule("no", 1)}, nil)

	scope := eng.GetDataScope(context.Background(), "u-1", "course", "read")
	if scope.HasAccess {
		t.Error("expected no access")
	}
	if scope.Filter != nil {
		t.Errorf("denied scope carries filter %v, want nil", scope.Filter)
	}
}

func TestGetDataScopeNoPoliciesDenied(t *testing.T) {
	eng, _ := newTestEngine(t, nil, nil)

	if scope := eng.GetDataScope(context.Background(), "u-1", "course", "read"); scope.HasAccess {
		t.Error("default deny should yield no access")
	}
}

func TestGetDataScopeDefaultAction(t *testing.T) {
	// allowRule grants "read" only; an empty action falls back to it.
	eng, _ := newTestEngine(t, []*types.PolicyRule{allowRule("reader", 1)}, nil)

	if scope := eng.GetDataScope(context.Background(), "u-1", "course", ""); !scope.HasAccess {
		t.Error("empty action should default to read")
	}
	if scope := eng.GetDataScope(context.Background(), "u-1", "course", "delete"); scope.HasAccess {
		t.Error("delete is not granted")
	}
}

func TestGetDataScopeUnrestrictedAllow(t *testing.T) {
	eng, _ := newTestEngine(t, []*types.PolicyRule{allowRule("all", 1)}, nil)

	scope := eng.GetDataScope(context.Background(), "u-1", "course", "read")
	if !scope.HasAccess {
		t.Fatal("expected access")
	}
	if scope.Filter != nil {
		t.Errorf("unconditional allow should have nil filter, got %v", scope.Filter)
	}
}
