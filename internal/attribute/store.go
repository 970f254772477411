// Package attribute provides user attribute storage and subject attribute
// resolution.
package attribute

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// UserStore supplies subject records. Owned by the identity side of the
// system; the evaluator only reads.
type UserStore interface {
	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, userID string) (*types.User, error)
}

// Store defines user-attribute storage.
type Store interface {
	// FindActiveUserAttributes returns the attributes that are effective for
	// a user at the given instant: active, and not past validUntil.
	FindActiveUserAttributes(ctx context.Context, userID string, asOf time.Time) ([]*types.UserAttribute, error)

	// Upsert creates or replaces the attribute keyed by (userId, attributeName).
	Upsert(ctx context.Context, attr *types.UserAttribute) error

	// Deactivate soft-deletes an attribute by flipping isActive.
	Deactivate(ctx context.Context, userID, attributeName string) error

	// ListForUser returns every attribute row for a user, including inactive
	// and expired ones (admin view).
	ListForUser(ctx context.Context, userID string) ([]*types.UserAttribute, error)
}

// DefinitionStore defines attribute-definition storage for the authoring API.
type DefinitionStore interface {
	// GetDefinition retrieves a definition by attribute name.
	GetDefinition(ctx context.Context, name string) (*types.AttributeDefinition, error)

	// ListDefinitions returns all definitions, active and inactive.
	ListDefinitions(ctx context.Context) ([]*types.AttributeDefinition, error)

	// SaveDefinition creates or replaces a definition keyed by name.
	SaveDefinition(ctx context.Context, def *types.AttributeDefinition) error

	// DeactivateDefinition soft-deletes a definition.
	DeactivateDefinition(ctx context.Context, name string) error
}

// MemoryStore implements Store and DefinitionStore in memory.
type MemoryStore struct {
	attrs map[string]map[string]*types.UserAttribute // userID -> attributeName
	defs  map[string]*types.AttributeDefinition
	users map[string]*types.User
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory attribute store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attrs: make(map[string]map[string]*types.UserAttribute),
		defs:  make(map[string]*types.AttributeDefinition),
		users: make(map[string]*types.User),
	}
}

// PutUser adds or replaces a user record.
func (s *MemoryStore) PutUser(user *types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return user, nil
}

// FindActiveUserAttributes returns effective attributes sorted by name for
// deterministic resolution order.
func (s *MemoryStore) FindActiveUserAttributes(ctx context.Context, userID string, asOf time.Time) ([]*types.UserAttribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.UserAttribute
	for _, attr := range s.attrs[userID] {
		if attr.EffectiveAt(asOf) {
			out = append(out, attr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttributeName < out[j].AttributeName })
	return out, nil
}

// Upsert creates or replaces an attribute row.
func (s *MemoryStore) Upsert(ctx context.Context, attr *types.UserAttribute) error {
	if attr.UserID == "" || attr.AttributeName == "" {
		return fmt.Errorf("userId and attributeName are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.attrs[attr.UserID]
	if !ok {
		byName = make(map[string]*types.UserAttribute)
		s.attrs[attr.UserID] = byName
	}
	cp := *attr
	cp.UpdatedAt = time.Now()
	byName[attr.AttributeName] = &cp
	return nil
}

// Deactivate soft-deletes an attribute row.
func (s *MemoryStore) Deactivate(ctx context.Context, userID, attributeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attr, ok := s.attrs[userID][attributeName]
	if !ok {
		return fmt.Errorf("attribute not found: %s/%s", userID, attributeName)
	}
	attr.IsActive = false
	attr.UpdatedAt = time.Now()
	return nil
}

// ListForUser returns every attribute row for a user.
func (s *MemoryStore) ListForUser(ctx context.Context, userID string) ([]*types.UserAttribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.UserAttribute
	for _, attr := range s.attrs[userID] {
		out = append(out, attr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttributeName < out[j].AttributeName })
	return out, nil
}

// GetDefinition retrieves a definition by name.
func (s *MemoryStore) GetDefinition(ctx context.Context, name string) (*types.AttributeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("attribute definition not found: %s", name)
	}
	return def, nil
}

// ListDefinitions returns all definitions sorted by name.
func (s *MemoryStore) ListDefinitions(ctx context.Context) ([]*types.AttributeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.AttributeDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveDefinition creates or replaces a definition.
func (s *MemoryStore) SaveDefinition(ctx context.Context, def *types.AttributeDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("attribute name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *def
	s.defs[def.Name] = &cp
	return nil
}

// DeactivateDefinition soft-deletes a definition.
func (s *MemoryStore) DeactivateDefinition(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[name]
	if !ok {
		return fmt.Errorf("attribute definition not found: %s", name)
	}
	def.IsActive = false
	return nil
}
