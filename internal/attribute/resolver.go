package attribute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/condition"
	"github.com/campuserp/abac-core/pkg/types"
)

// Resolver assembles the full attribute bag for a subject. Bags are rebuilt
// from the stores on every call; attribute changes must be observed
// immediately, so nothing is cached across evaluations.
type Resolver struct {
	users  UserStore
	attrs  Store
	logger *zap.Logger
}

// NewResolver creates a new attribute resolver.
func NewResolver(users UserStore, attrs Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		users:  users,
		attrs:  attrs,
		logger: logger,
	}
}

// Resolve builds the flat attribute bag for a user at the given instant.
// Later layers override earlier ones: user record, computed time attributes,
// relational attributes, then stored user attributes.
func (r *Resolver) Resolve(ctx context.Context, userID string, now time.Time) (condition.Bag, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", userID, err)
	}

	bag := condition.Bag{
		"userId":       types.String(user.ID),
		"username":     types.String(user.Username),
		"email":        types.String(user.Email),
		"isSuperAdmin": types.Bool(user.IsSuperAdmin),
		"isActive":     types.Bool(user.IsActive),
	}

	for name, v := range TimeAttributes(now) {
		bag[name] = v
	}

	departments := make([]types.Value, 0, len(user.DepartmentRoles))
	roles := make([]types.Value, 0, len(user.DepartmentRoles))
	seen := make(map[string]bool)
	for _, dr := range user.DepartmentRoles {
		if !seen["d:"+dr.DepartmentID] {
			seen["d:"+dr.DepartmentID] = true
			departments = append(departments, types.String(dr.DepartmentID))
		}
		if !seen["r:"+dr.Role] {
			seen["r:"+dr.Role] = true
			roles = append(roles, types.String(dr.Role))
		}
	}
	bag["departments"] = types.List(departments...)
	bag["primaryDepartment"] = types.String(user.PrimaryDepartment)
	bag["roles"] = types.List(roles...)

	stored, err := r.attrs.FindActiveUserAttributes(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve stored attributes for %s: %w", userID, err)
	}
	for _, attr := range stored {
		bag[attr.AttributeName] = attr.AttributeValue
	}

	r.logger.Debug("resolved attribute bag",
		zap.String("user_id", userID),
		zap.Int("attributes", len(bag)),
	)

	return bag, nil
}

// TimeAttributes computes the environment time attributes for an instant.
// The weekday name is lowercased here; comparisons against allowedDays are
// still case-insensitive because the authoring side has produced capitalized
// names before.
func TimeAttributes(now time.Time) map[string]types.Value {
	return map[string]types.Value{
		"currentTime": types.Time(now),
		"currentHour": types.Number(float64(now.Hour())),
		"currentDay":  types.String(strings.ToLower(now.Weekday().String())),
	}
}
