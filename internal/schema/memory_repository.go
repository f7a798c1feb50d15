package schema

import (
	"sync"
)

// MemoryRepository is an in-memory versioned schema store
type MemoryRepository struct {
	mu       sync.RWMutex
	versions map[string][]Schema
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{
		versions: make(map[string][]Schema),
	}
	var repo Repository = &r
	return repo
}

// Create stores a new version of a schema and returns its version number
func (r *MemoryRepository) Create(s Schema) (int64, error) {
	if ok, err := s.IsValid(); !ok {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Version = int64(len(r.versions[s.Code]) + 1)
	s.Document = s.Document.Clone()
	r.versions[s.Code] = append(r.versions[s.Code], s)
	return s.Version, nil
}

// Get returns the latest version of a schema if it is active
func (r *MemoryRepository) Get(code string) (Schema, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.versions[code]
	if len(versions) == 0 {
		return Schema{}, false, nil
	}
	latest := versions[len(versions)-1]
	if !latest.Active {
		return Schema{}, false, nil
	}
	return latest, true, nil
}

// GetByVersion returns a specific version of a schema, active or not
func (r *MemoryRepository) GetByVersion(code string, version int64) (Schema, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.versions[code]
	if version < 1 || version > int64(len(versions)) {
		return Schema{}, false, nil
	}
	return versions[version-1], true, nil
}

// GetAllActive returns the latest version of every schema when that version is active
func (r *MemoryRepository) GetAllActive() (map[string]Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make(map[string]Schema, len(r.versions))
	for code, versions := range r.versions {
		latest := versions[len(versions)-1]
		if latest.Active {
			schemas[code] = latest
		}
	}
	return schemas, nil
}
