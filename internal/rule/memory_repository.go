package rule

import (
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory versioned rule store
type MemoryRepository struct {
	mu       sync.RWMutex
	versions map[string][]Rule
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{
		versions: make(map[string][]Rule),
	}
	var repo Repository = &r
	return repo
}

// Create stores the first version of a rule
func (r *MemoryRepository) Create(rule Rule) (int64, error) {
	if ok, err := rule.IsValid(); !ok {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.versions[rule.Code]; exists {
		return -1, fmt.Errorf("%w: %s", ErrRuleExists, rule.Code)
	}
	rule = rule.Clone()
	rule.Version = 1
	r.versions[rule.Code] = []Rule{rule}
	return rule.Version, nil
}

// Publish stores a new version of an existing rule
func (r *MemoryRepository) Publish(rule Rule) (int64, error) {
	if ok, err := rule.IsValid(); !ok {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, exists := r.versions[rule.Code]
	if !exists {
		return -1, fmt.Errorf("%w: %s", ErrRuleNotFound, rule.Code)
	}
	rule = rule.Clone()
	rule.Version = versions[len(versions)-1].Version + 1
	r.versions[rule.Code] = append(versions, rule)
	return rule.Version, nil
}

// Retire publishes a new, inactive version of a rule
func (r *MemoryRepository) Retire(code string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, exists := r.versions[code]
	if !exists {
		return -1, fmt.Errorf("%w: %s", ErrRuleNotFound, code)
	}
	retired := versions[len(versions)-1].Clone()
	retired.Active = false
	retired.Version++
	r.versions[code] = append(versions, retired)
	return retired.Version, nil
}

// Get returns the latest version of a rule, active or not
func (r *MemoryRepository) Get(code string) (Rule, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.versions[code]
	if !exists {
		return Rule{}, false, nil
	}
	return versions[len(versions)-1].Clone(), true, nil
}

// GetByVersion returns a specific version of a rule
func (r *MemoryRepository) GetByVersion(code string, version int64) (Rule, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.versions[code] {
		if rule.Version == version {
			return rule.Clone(), true, nil
		}
	}
	return Rule{}, false, nil
}

// GetAll returns the latest version of every rule
func (r *MemoryRepository) GetAll() (map[string]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make(map[string]Rule, len(r.versions))
	for code, versions := range r.versions {
		rules[code] = versions[len(versions)-1].Clone()
	}
	return rules, nil
}

// GetAllActive returns the active rules of an entry point in execution order
func (r *MemoryRepository) GetAllActive(entryPoint string) ([]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0)
	for _, versions := range r.versions {
		latest := versions[len(versions)-1]
		if latest.Active && latest.EntryPoint == entryPoint {
			rules = append(rules, latest.Clone())
		}
	}
	Sort(rules)
	return rules, nil
}
