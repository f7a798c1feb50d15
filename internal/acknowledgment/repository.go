package acknowledgment

import (
	"sort"
	"sync"
	"time"

	"github.com/acted/rules-engine/internal/rule"
)

// Repository stores acknowledgment decisions
type Repository interface {
	Save(d Decision) (int64, error)
	GetActive(s Subject) ([]Decision, error)
	ConsumeOrder(s Subject) (int64, error)
}

var (
	_globalRepositoryMu sync.RWMutex
	_globalRepository   Repository
)

// R is used to access the global repository singleton
func R() Repository {
	_globalRepositoryMu.RLock()
	defer _globalRepositoryMu.RUnlock()

	repository := _globalRepository
	return repository
}

// ReplaceGlobals affect a new repository to the global repository singleton
func ReplaceGlobals(repository Repository) func() {
	_globalRepositoryMu.Lock()
	defer _globalRepositoryMu.Unlock()

	prev := _globalRepository
	_globalRepository = repository
	return func() { ReplaceGlobals(prev) }
}

// MemoryRepository is an in-memory decision store
type MemoryRepository struct {
	mu        sync.Mutex
	decisions []Decision
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{}
	var repo Repository = &r
	return repo
}

// Save stores a decision and returns its id
func (r *MemoryRepository) Save(d Decision) (int64, error) {
	if ok, err := d.IsValid(); !ok {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d.ID = int64(len(r.decisions) + 1)
	d.Consumed = false
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().Truncate(1 * time.Millisecond).UTC()
	}
	r.decisions = append(r.decisions, d)
	return d.ID, nil
}

// GetActive returns the unconsumed decisions concerning a subject, oldest first
func (r *MemoryRepository) GetActive(s Subject) ([]Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	decisions := make([]Decision, 0)
	for _, d := range r.decisions {
		if d.Concerns(s) {
			decisions = append(decisions, d)
		}
	}
	sort.SliceStable(decisions, func(i, j int) bool { return decisions[i].CreatedAt.Before(decisions[j].CreatedAt) })
	return decisions, nil
}

// ConsumeOrder marks the per_order decisions of a subject as consumed
func (r *MemoryRepository) ConsumeOrder(s Subject) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i, d := range r.decisions {
		if d.Scope == rule.ScopePerOrder && d.Concerns(s) {
			r.decisions[i].Consumed = true
			n++
		}
	}
	return n, nil
}
