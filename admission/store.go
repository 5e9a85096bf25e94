package admission

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// RuleStore manages rule persistence
type RuleStore interface {
	// Add stores a new rule; the id must be unused
	Add(rule *Rule) error

	// Get returns a rule by id or ErrRuleNotFound
	Get(id string) (*Rule, error)

	// List returns every rule, oldest first
	List() ([]*Rule, error)

	// ListActive returns the active rules, oldest first
	ListActive() ([]*Rule, error)

	// Update replaces an existing rule, preserving CreatedAt
	Update(rule *Rule) error

	// Delete removes a rule
	Delete(id string) error
}

// InMemoryRuleStore is a RuleStore backed by a map.
// Lists follow insertion order.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	order []string
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates an empty store
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
	}
}

// Add stores a new rule and stamps its timestamps
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule
	s.order = append(s.order, rule.ID)
	return nil
}

// Get returns a rule by id
func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// List returns every rule
func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	return s.filter(func(*Rule) bool { return true }), nil
}

// ListActive returns the active rules
func (s *InMemoryRuleStore) ListActive() ([]*Rule, error) {
	return s.filter(func(r *Rule) bool { return r.Active }), nil
}

func (s *InMemoryRuleStore) filter(keep func(*Rule) bool) []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, id := range s.order {
		if rule := s.rules[id]; keep(rule) {
			out = append(out, rule)
		}
	}
	return out
}

// Update replaces an existing rule
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = rule
	return nil
}

// Delete removes a rule
func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	delete(s.rules, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return nil
}
