// Package engine provides the core ABAC decision engine.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/attribute"
	"github.com/campuserp/abac-core/internal/audit"
	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/internal/policy"
	"github.com/campuserp/abac-core/pkg/types"
)

// Engine is the ABAC decision engine. It is stateless per call: every
// evaluation resolves a fresh attribute snapshot and a fresh candidate set,
// so concurrent calls never contend beyond the backing stores.
type Engine struct {
	resolver *attribute.Resolver
	policies policy.Store
	audit    audit.Logger
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Config configures the decision engine.
type Config struct {
	// Clock overrides the time source. Nil means time.Now; tests use this
	// to pin time-window evaluation.
	Clock func() time.Time
}

// New creates a new decision engine. The audit logger and metrics may be nil,
// in which case those side effects are skipped.
func New(cfg Config, resolver *attribute.Resolver, policies policy.Store, auditLogger audit.Logger, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		resolver: resolver,
		policies: policies,
		audit:    auditLogger,
		metrics:  m,
		logger:   logger,
		now:      now,
	}
}

// Evaluate computes the access decision for one (user, resource, action)
// request. It never returns an error: any store failure forces the decision
// to deny with the error attached, preserving the fail-closed posture.
//
// The combining algorithm walks candidates in priority order as a two-state
// machine: a matching policy moves the decision to its effect; reaching
// allow halts the scan immediately, reaching deny keeps scanning. The final
// decision is therefore the first matching allow, or the last matching deny
// seen before any allow, or the default deny.
func (e *Engine) Evaluate(ctx context.Context, req *types.EvaluationRequest) *types.EvaluationResult {
	start := time.Now()
	now := e.now()

	result := &types.EvaluationResult{
		Decision: types.DecisionDeny,
		Policies: []*types.PolicyTrace{},
	}

	bag, err := e.resolver.Resolve(ctx, req.UserID, now)
	if err != nil {
		return e.failClosed(ctx, req, result, start, now, err)
	}

	candidates, err := e.policies.FindCandidatePolicies(ctx, req.Resource.ModelName, req.Action, now)
	if err != nil {
		return e.failClosed(ctx, req, result, start, now, err)
	}

	for _, rule := range candidates {
		trace := e.evaluatePolicy(rule, bag, req, now)
		result.Policies = append(result.Policies, trace)

		if !trace.Matched {
			continue
		}
		result.Decision = types.Decision(rule.Effect)
		if rule.Effect == types.EffectAllow {
			break
		}
	}

	result.EvaluationTimeMs = float64(time.Since(start).Microseconds()) / 1000

	e.logger.Debug("evaluation complete",
		zap.String("user_id", req.UserID),
		zap.String("model", req.Resource.ModelName),
		zap.String("action", req.Action),
		zap.String("decision", string(result.Decision)),
		zap.Int("candidates", len(candidates)),
	)

	if e.metrics != nil {
		e.metrics.RecordEvaluation(string(result.Decision), time.Since(start), len(candidates))
	}
	e.recordAudit(ctx, req, result, result.Decision, now, "")

	return result
}

// failClosed finalizes a result after a resolution or selection failure.
// The caller receives deny with the error attached; the audit record keeps
// the distinction by logging the decision as indeterminate.
func (e *Engine) failClosed(ctx context.Context, req *types.EvaluationRequest, result *types.EvaluationResult, start time.Time, now time.Time, err error) *types.EvaluationResult {
	result.Decision = types.DecisionDeny
	result.Error = err.Error()
	result.EvaluationTimeMs = float64(time.Since(start).Microseconds()) / 1000

	e.logger.Warn("evaluation failed closed",
		zap.String("user_id", req.UserID),
		zap.String("model", req.Resource.ModelName),
		zap.String("action", req.Action),
		zap.Error(err),
	)

	if e.metrics != nil {
		e.metrics.RecordEvaluationError()
		e.metrics.RecordEvaluation(string(types.DecisionDeny), time.Since(start), 0)
	}
	e.recordAudit(ctx, req, result, types.DecisionIndeterminate, now, err.Error())

	return result
}

// recordAudit enqueues the audit record. Persistence is fire-and-forget:
// a dropped record is acceptable, a wrong decision is not.
func (e *Engine) recordAudit(ctx context.Context, req *types.EvaluationRequest, result *types.EvaluationResult, decision types.Decision, now time.Time, errMsg string) {
	if e.audit == nil {
		return
	}
	e.audit.LogEvaluation(ctx, &types.PolicyEvaluation{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Resource:          req.Resource,
		Action:            req.Action,
		RequestContext:    req.Context,
		EvaluatedPolicies: result.Policies,
		FinalDecision:     decision,
		EvaluationTimeMs:  result.EvaluationTimeMs,
		Timestamp:         now,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		Error:             errMsg,
	})
}
