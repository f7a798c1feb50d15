package audit

import (
	"fmt"
	"sync"
)

// MemoryRepository keeps execution records in insertion order
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{index: make(map[string]int)}
}

// Create appends a record
func (r *MemoryRepository) Create(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[rec.ExecutionID]; exists {
		return fmt.Errorf("execution %s already recorded", rec.ExecutionID)
	}
	r.index[rec.ExecutionID] = len(r.records)
	r.records = append(r.records, rec)
	return nil
}

// Get returns the record of an execution
func (r *MemoryRepository) Get(executionID string) (Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[executionID]
	if !ok {
		return Record{}, false, nil
	}
	return r.records[i], true, nil
}

// GetByEntryPoint returns the latest records of an entry point, most recent first
func (r *MemoryRepository) GetByEntryPoint(entryPoint string, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0)
	for i := len(r.records) - 1; i >= 0 && (limit <= 0 || len(records) < limit); i-- {
		if r.records[i].EntryPoint == entryPoint {
			records = append(records, r.records[i])
		}
	}
	return records, nil
}

// All returns every record in insertion order
func (r *MemoryRepository) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, len(r.records))
	copy(records, r.records)
	return records
}
