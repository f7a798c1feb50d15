package rule

import (
	"errors"
	"sync"
)

var (
	// ErrRuleExists is returned by Create when the rule code is already used
	ErrRuleExists = errors.New("rule already exists")
	// ErrRuleNotFound is returned by Publish and Retire on unknown rule codes
	ErrRuleNotFound = errors.New("rule not found")
)

// Repository is a storage interface which can be implemented by multiple backend
// (in-memory map, sql database, in-memory cache, file system, ...)
// Rules are stored as immutable versions; the active set is the latest version
// of every code when that version is active.
type Repository interface {
	Create(rule Rule) (int64, error)
	Publish(rule Rule) (int64, error)
	Retire(code string) (int64, error)
	Get(code string) (Rule, bool, error)
	GetByVersion(code string, version int64) (Rule, bool, error)
	GetAll() (map[string]Rule, error)
	GetAllActive(entryPoint string) ([]Rule, error)
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
