package messagetemplate

import (
	"sync"
)

// Repository is a storage interface which can be implemented by multiple backend
// (in-memory map, sql database, in-memory cache, file system, ...)
type Repository interface {
	Save(t Template) error
	Get(name string) (Template, bool, error)
	GetAll() (map[string]Template, error)
	Delete(name string) error
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

// MemoryRepository keeps templates in a map
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{templates: make(map[string]Template)}
	var repo Repository = &r
	return repo
}

// Save creates or replaces a template
func (r *MemoryRepository) Save(t Template) error {
	if ok, err := t.IsValid(); !ok {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
	return nil
}

// Get returns a template by name
func (r *MemoryRepository) Get(name string) (Template, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok, nil
}

// GetAll returns every template keyed by name
func (r *MemoryRepository) GetAll() (map[string]Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Template, len(r.templates))
	for k, v := range r.templates {
		out[k] = v
	}
	return out, nil
}

// Delete removes a template
func (r *MemoryRepository) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, name)
	return nil
}
