// Package condition evaluates atomic policy conditions and ordered condition
// groups against dynamically-typed attribute bags.
package condition

import (
	"strings"

	"github.com/campuserp/abac-core/pkg/types"
)

// Evaluate tests one condition's operator against an actual value. It never
// panics: a type mismatch or an unrecognized operator evaluates to false.
//
// The subject-reference operators (same_as_user / different_from_user) are not
// handled here; they need the subject bag and are resolved by the policy
// evaluator before calling in with a plain equals/not_equals comparison.
func Evaluate(op types.Operator, expected, actual types.Value) bool {
	switch op {
	case types.OpEquals:
		return actual.Equal(expected)

	case types.OpNotEquals:
		return !actual.Equal(expected)

	case types.OpIn:
		return listContains(expected, actual)

	case types.OpNotIn:
		// A non-list expectation fails closed rather than matching everything.
		if _, ok := expected.AsList(); !ok {
			return false
		}
		return !listContains(expected, actual)

	case types.OpContains:
		return listContains(actual, expected)

	case types.OpStartsWith:
		a, okA := actual.AsString()
		e, okE := expected.AsString()
		return okA && okE && strings.HasPrefix(a, e)

	case types.OpEndsWith:
		a, okA := actual.AsString()
		e, okE := expected.AsString()
		return okA && okE && strings.HasSuffix(a, e)

	case types.OpGreaterThan:
		c, ok := actual.Compare(expected)
		return ok && c > 0

	case types.OpLessThan:
		c, ok := actual.Compare(expected)
		return ok && c < 0

	case types.OpBetween:
		return between(expected, actual)

	default:
		return false
	}
}

// listContains reports whether list (when it actually is a list) holds an
// element strictly equal to needle.
func listContains(list, needle types.Value) bool {
	elems, ok := list.AsList()
	if !ok {
		return false
	}
	for _, e := range elems {
		if e.Equal(needle) {
			return true
		}
	}
	return false
}

// between expects a two-element [low, high] list and tests
// low <= actual <= high, inclusive on both ends.
func between(bounds, actual types.Value) bool {
	elems, ok := bounds.AsList()
	if !ok || len(elems) != 2 {
		return false
	}
	lo, okLo := actual.Compare(elems[0])
	hi, okHi := actual.Compare(elems[1])
	return okLo && okHi && lo >= 0 && hi <= 0
}
