// Package policy provides policy rule storage, validation, loading and
// hot-reload.
package policy

import (
	"context"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// Store defines policy rule storage. The evaluator only calls
// FindCandidatePolicies; the remaining methods serve the admin API and the
// file loader.
type Store interface {
	// Get retrieves a policy rule by id.
	Get(ctx context.Context, id string) (*types.PolicyRule, error)

	// GetAll retrieves all policy rules, active and inactive.
	GetAll(ctx context.Context) ([]*types.PolicyRule, error)

	// FindCandidatePolicies returns the active rules targeting
	// (modelName, action) whose validity interval covers asOf, ordered by
	// ascending priority with creation-order ties.
	FindCandidatePolicies(ctx context.Context, modelName, action string, asOf time.Time) ([]*types.PolicyRule, error)

	// Create adds a new policy rule.
	Create(ctx context.Context, rule *types.PolicyRule) error

	// Update replaces an existing policy rule by id.
	Update(ctx context.Context, rule *types.PolicyRule) error

	// Deactivate soft-deletes a policy rule by flipping isActive.
	Deactivate(ctx context.Context, id string) error

	// Count returns the number of stored rules.
	Count(ctx context.Context) (int, error)
}

// withinValidity reports whether asOf falls inside the rule's optional
// validFrom/validUntil bounds. Day and hour windows are evaluated later, per
// policy; only the coarse interval participates in candidate selection.
func withinValidity(rule *types.PolicyRule, asOf time.Time) bool {
	tba := rule.TimeBasedAccess
	if tba == nil {
		return true
	}
	if tba.ValidFrom != nil && asOf.Before(*tba.ValidFrom) {
		return false
	}
	if tba.ValidUntil != nil && asOf.After(*tba.ValidUntil) {
		return false
	}
	return true
}
