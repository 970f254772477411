package condition

import (
	"github.com/campuserp/abac-core/pkg/types"
)

// Bag is a flat attribute map. Missing attributes read as null.
type Bag map[string]types.Value

// Get returns the named attribute or null.
func (b Bag) Get(name string) types.Value {
	if v, ok := b[name]; ok {
		return v
	}
	return types.Null()
}

// GroupResult carries the outcome of a condition-group evaluation together
// with one trace entry per condition attempted.
type GroupResult struct {
	Matched bool
	Trace   []types.ConditionTrace
}

// EvaluateGroup runs an ordered condition list against an attribute bag.
//
// The list is folded strictly left-to-right with no operator precedence or
// grouping: an OR condition that evaluates true short-circuits the group to
// true, an AND condition (the default) that evaluates false short-circuits it
// to false, and everything else carries the running result forward. Lists
// mixing AND and OR are therefore order-dependent; that matches the authoring
// system and must not be normalized into conventional boolean algebra.
//
// An empty or absent list matches trivially.
//
// In the resource stage, conditions naming a field absent from the bag are
// deferred (counted as satisfied, traced with result true): middleware often
// checks by model name and id alone, and the data-scope filter derived from
// these conditions carries the enforcement instead. Subject and environment
// conditions always compare strictly, with missing attributes reading null.
//
// subjectBag supplies the reference values for same_as_user and
// different_from_user. It is non-nil only for resource condition groups; in
// any other group those operators are unrecognized and evaluate to false.
func EvaluateGroup(conds []*types.Condition, bag Bag, stage types.ConditionStage, subjectBag Bag) GroupResult {
	res := GroupResult{Matched: true}
	if len(conds) == 0 {
		return res
	}

	for _, c := range conds {
		actual, present := bag[c.Attribute]
		if !present {
			actual = types.Null()
		}
		op, expected := resolveOperator(c, subjectBag)

		var ok bool
		if stage == types.StageResource && !present && !isUserReference(c.Operator) {
			// Resource conditions on fields the caller did not supply are
			// deferred rather than failed: enforcement falls to the data-scope
			// filter derived from them. Callers checking a concrete instance
			// pass its fields and get the strict comparison.
			ok = true
		} else {
			ok = Evaluate(op, expected, actual)
		}

		res.Trace = append(res.Trace, types.ConditionTrace{
			Stage:         stage,
			Attribute:     c.Attribute,
			Operator:      c.Operator,
			ExpectedValue: expected,
			ActualValue:   actual,
			Result:        ok,
		})

		if c.LogicalOperator == types.LogicalOr {
			if ok {
				res.Matched = true
				return res
			}
			// A failed OR condition carries the running result forward.
			continue
		}
		if !ok {
			res.Matched = false
			return res
		}
	}

	return res
}

// isUserReference reports whether the operator compares against a subject
// attribute instead of a literal value. These never defer: an absent resource
// field cannot be meaningfully compared to the subject later.
func isUserReference(op types.Operator) bool {
	return op == types.OpSameAsUser || op == types.OpDifferentFromUser
}

// resolveOperator rewrites the subject-reference operators into plain
// equality tests against the subject bag. All other operators pass through
// with the condition's literal expected value.
func resolveOperator(c *types.Condition, subjectBag Bag) (types.Operator, types.Value) {
	switch c.Operator {
	case types.OpSameAsUser:
		if subjectBag == nil {
			return c.Operator, types.Null() // unrecognized outside resource groups
		}
		return types.OpEquals, subjectBag.Get(c.ReferenceUserAttribute)
	case types.OpDifferentFromUser:
		if subjectBag == nil {
			return c.Operator, types.Null()
		}
		return types.OpNotEquals, subjectBag.Get(c.ReferenceUserAttribute)
	default:
		return c.Operator, c.Value
	}
}
