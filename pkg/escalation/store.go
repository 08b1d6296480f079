package escalation

import (
	"fmt"
	"sync"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// Store persists EscalationCases. The interface is defined so a persistent
// backend is substitutable without changing call sites (spec.md §4.6).
type Store interface {
	Create(c *qatypes.EscalationCase) error
	Get(caseID string) (*qatypes.EscalationCase, error)
	Update(c *qatypes.EscalationCase) error
	List(filter Filter) ([]*qatypes.EscalationCase, error)
}

// Filter narrows List results. A zero-value Filter matches every case.
type Filter struct {
	State    qatypes.EscalationState
	HasState bool
}

// Matches reports whether c satisfies f.
func (f Filter) Matches(c *qatypes.EscalationCase) bool {
	if f.HasState && c.State != f.State {
		return false
	}
	return true
}

// ErrNotFound is returned by Get/Update when a case id is unknown.
var ErrNotFound = fmt.Errorf("escalation: case not found")

// InMemoryStore is the default Store: a map guarded by a mutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	cases map[string]*qatypes.EscalationCase
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cases: make(map[string]*qatypes.EscalationCase)}
}

func (s *InMemoryStore) Create(c *qatypes.EscalationCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.cases[c.CaseID] = &cp
	return nil
}

func (s *InMemoryStore) Get(caseID string) (*qatypes.EscalationCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) Update(c *qatypes.EscalationCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.CaseID]; !ok {
		return ErrNotFound
	}
	cp := *c
	s.cases[c.CaseID] = &cp
	return nil
}

func (s *InMemoryStore) List(filter Filter) ([]*qatypes.EscalationCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*qatypes.EscalationCase, 0, len(s.cases))
	for _, c := range s.cases {
		if filter.Matches(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}
