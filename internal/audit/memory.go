package audit

import (
	"context"
	"sync"

	"github.com/campuserp/abac-core/pkg/types"
)

// MemoryStore keeps evaluation records in memory. Intended for tests and
// single-node deployments without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*types.PolicyEvaluation
	maxSize int
}

// NewMemoryStore creates an in-memory audit store retaining at most maxSize
// records. Zero or negative maxSize means unbounded.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{maxSize: maxSize}
}

func (s *MemoryStore) AppendEvaluation(_ context.Context, record *types.PolicyEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if s.maxSize > 0 && len(s.records) > s.maxSize {
		s.records = s.records[len(s.records)-s.maxSize:]
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]*types.PolicyEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var out []*types.PolicyEvaluation
	skipped := 0
	// Newest first.
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.ModelName != "" && r.Resource.ModelName != filter.ModelName {
			continue
		}
		if filter.Decision != "" && r.FinalDecision != filter.Decision {
			continue
		}
		if !filter.Since.IsZero() && r.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && r.Timestamp.After(filter.Until) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Len reports the number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
