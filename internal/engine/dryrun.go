package engine

import (
	"context"

	"github.com/campuserp/abac-core/pkg/types"
)

// TestPolicy evaluates a single rule against a request without consulting
// the policy store and without recording audit or metrics. Policy authors
// use this to dry-run a draft rule before saving it.
func (e *Engine) TestPolicy(ctx context.Context, rule *types.PolicyRule, req *types.EvaluationRequest) (*types.PolicyTrace, error) {
	now := e.now()
	bag, err := e.resolver.Resolve(ctx, req.UserID, now)
	if err != nil {
		return nil, err
	}
	return e.evaluatePolicy(rule, bag, req, now), nil
}
