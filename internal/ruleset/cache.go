package ruleset

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/acted/rules-engine/internal/metrics"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoRepository is returned when the cache has no store to load from
var ErrNoRepository = errors.New("no rule repository")

// CacheLoadError is returned when no snapshot can be provided for an entry point
type CacheLoadError struct {
	EntryPoint string
	Err        error
}

func (e *CacheLoadError) Error() string {
	return fmt.Sprintf("couldn't load the rule set of entry point %s: %s", e.EntryPoint, e.Err)
}

func (e *CacheLoadError) Unwrap() error { return e.Err }

// Snapshot is the ordered active rule set of an entry point at a given revision,
// with the compiled schema of every rule that declares one
type Snapshot struct {
	EntryPoint string
	Revision   uint64
	Rules      []rule.Rule
	Schemas    map[string]*schema.Compiled
}

func (s *Snapshot) copy() Snapshot {
	rules := make([]rule.Rule, len(s.Rules))
	for i, r := range s.Rules {
		rules[i] = r.Clone()
	}
	return Snapshot{
		EntryPoint: s.EntryPoint,
		Revision:   s.Revision,
		Rules:      rules,
		Schemas:    s.Schemas,
	}
}

// state is never modified once published
type state struct {
	revision uint64
	entries  map[string]*Snapshot
	schemas  map[string]*schema.Compiled
}

// Cache holds one immutable snapshot per entry point.
// Readers load the current state atomically and never wait on writers.
// Writers serialize on a mutex and publish a new state.
type Cache struct {
	rules   rule.Repository
	schemas schema.Repository

	current atomic.Pointer[state]
	mu      sync.Mutex
	loads   singleflight.Group
}

// NewCache returns a new empty Cache backed by the given stores
func NewCache(rules rule.Repository, schemas schema.Repository) *Cache {
	c := &Cache{rules: rules, schemas: schemas}
	c.current.Store(&state{
		entries: make(map[string]*Snapshot),
		schemas: make(map[string]*schema.Compiled),
	})
	return c
}

// Revision returns the current rule set revision
func (c *Cache) Revision() uint64 {
	return c.current.Load().revision
}

// Get returns a private copy of the snapshot of an entry point, loading it from the store on a miss
func (c *Cache) Get(entryPoint string) (Snapshot, error) {
	st := c.current.Load()
	if snap, ok := st.entries[entryPoint]; ok {
		return snap.copy(), nil
	}

	key := strconv.FormatUint(st.revision, 10) + "/" + entryPoint
	v, err, _ := c.loads.Do(key, func() (interface{}, error) {
		return c.load(entryPoint, st)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(*Snapshot).copy(), nil
}

func (c *Cache) load(entryPoint string, st *state) (*Snapshot, error) {
	if c.rules == nil {
		return nil, &CacheLoadError{EntryPoint: entryPoint, Err: ErrNoRepository}
	}
	metrics.CacheReloads.WithLabelValues(entryPoint).Inc()

	rules, err := c.rules.GetAllActive(entryPoint)
	if err != nil {
		zap.L().Error("Couldn't load the active rules", zap.String("entryPoint", entryPoint), zap.Error(err))
		return nil, &CacheLoadError{EntryPoint: entryPoint, Err: err}
	}

	compiled := make(map[string]*schema.Compiled)
	for _, r := range rules {
		if r.FieldsCode == "" {
			continue
		}
		if _, done := compiled[r.FieldsCode]; done {
			continue
		}
		cs, err := c.compiledSchema(r.FieldsCode, st)
		if err != nil {
			zap.L().Error("Couldn't load the schema of a rule", zap.String("entryPoint", entryPoint),
				zap.String("rule", r.Code), zap.String("schema", r.FieldsCode), zap.Error(err))
			return nil, &CacheLoadError{EntryPoint: entryPoint, Err: fmt.Errorf("rule %s: %w", r.Code, err)}
		}
		compiled[r.FieldsCode] = cs
	}

	snap := &Snapshot{
		EntryPoint: entryPoint,
		Revision:   st.revision,
		Rules:      rules,
		Schemas:    compiled,
	}
	c.publish(snap, compiled)
	return snap, nil
}

func (c *Cache) compiledSchema(code string, st *state) (*schema.Compiled, error) {
	if cs, ok := st.schemas[code]; ok {
		return cs, nil
	}
	if c.schemas == nil {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownSchema, code)
	}
	s, found, err := c.schemas.Get(code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownSchema, code)
	}
	return schema.Compile(s)
}

// publish stores a loaded snapshot unless the rule set changed while it was loading
func (c *Cache) publish(snap *Snapshot, compiled map[string]*schema.Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if cur.revision != snap.Revision {
		return
	}
	next := &state{
		revision: cur.revision,
		entries:  make(map[string]*Snapshot, len(cur.entries)+1),
		schemas:  make(map[string]*schema.Compiled, len(cur.schemas)+len(compiled)),
	}
	for k, v := range cur.entries {
		next.entries[k] = v
	}
	for k, v := range cur.schemas {
		next.schemas[k] = v
	}
	for k, v := range compiled {
		next.schemas[k] = v
	}
	next.entries[snap.EntryPoint] = snap
	c.current.Store(next)
}

// Invalidate drops every snapshot and compiled schema and bumps the revision
func (c *Cache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &state{
		revision: c.current.Load().revision + 1,
		entries:  make(map[string]*Snapshot),
		schemas:  make(map[string]*schema.Compiled),
	}
	c.current.Store(next)
	zap.L().Debug("Rule set cache invalidated", zap.Uint64("revision", next.revision))
	return next.revision
}
