package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuserp/abac-core/pkg/types"
)

// MemoryStore implements an in-memory policy store. Insertion order is
// preserved so that equal-priority rules evaluate in creation order.
type MemoryStore struct {
	rules []*types.PolicyRule
	byID  map[string]*types.PolicyRule
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*types.PolicyRule),
	}
}

// Get retrieves a policy rule by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	return rule, nil
}

// GetAll retrieves all policy rules in insertion order.
func (s *MemoryStore) GetAll(ctx context.Context) ([]*types.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.PolicyRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// FindCandidatePolicies returns active rules for (modelName, action) whose
// validity interval covers asOf, sorted by ascending priority. The sort is
// stable: priority ties keep insertion order.
func (s *MemoryStore) FindCandidatePolicies(ctx context.Context, modelName, action string, asOf time.Time) ([]*types.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.PolicyRule
	for _, rule := range s.rules {
		if !rule.IsActive {
			continue
		}
		if rule.Resource.ModelName != modelName {
			continue
		}
		if !rule.MatchesAction(action) {
			continue
		}
		if !withinValidity(rule, asOf) {
			continue
		}
		out = append(out, rule)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// Create adds a new policy rule, assigning an id when absent.
func (s *MemoryStore) Create(ctx context.Context, rule *types.PolicyRule) error {
	if rule.Name == "" {
		return fmt.Errorf("policy name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if _, exists := s.byID[rule.ID]; exists {
		return fmt.Errorf("policy already exists: %s", rule.ID)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	rule.UpdatedAt = rule.CreatedAt

	s.rules = append(s.rules, rule)
	s.byID[rule.ID] = rule
	return nil
}

// Update replaces an existing rule in place, keeping its insertion slot.
func (s *MemoryStore) Update(ctx context.Context, rule *types.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[rule.ID]
	if !ok {
		return fmt.Errorf("policy not found: %s", rule.ID)
	}

	rule.CreatedAt = old.CreatedAt
	rule.UpdatedAt = time.Now()
	for i, r := range s.rules {
		if r.ID == rule.ID {
			s.rules[i] = rule
			break
		}
	}
	s.byID[rule.ID] = rule
	return nil
}

// Deactivate soft-deletes a rule. The stored entry is replaced rather than
// mutated, so pointers handed out before the call keep their snapshot and
// can be read without holding the store lock.
func (s *MemoryStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("policy not found: %s", id)
	}
	updated := *rule
	updated.IsActive = false
	updated.UpdatedAt = time.Now()
	for i, r := range s.rules {
		if r.ID == id {
			s.rules[i] = &updated
			break
		}
	}
	s.byID[id] = &updated
	return nil
}

// Count returns the number of stored rules.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules), nil
}

// ReplaceAll swaps the entire rule set atomically. Used by the file watcher
// on reload.
func (s *MemoryStore) ReplaceAll(rules []*types.PolicyRule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make([]*types.PolicyRule, 0, len(rules))
	s.byID = make(map[string]*types.PolicyRule, len(rules))
	now := time.Now()
	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
		s.rules = append(s.rules, rule)
		s.byID[rule.ID] = rule
	}
}
