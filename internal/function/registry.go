package function

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/acted/rules-engine/pkg/value"
)

var (
	// ErrUnknownFunction is returned when calling or referencing an unregistered function id
	ErrUnknownFunction = errors.New("unknown function")
	// ErrDuplicateFunction is returned when registering the same name twice
	ErrDuplicateFunction = errors.New("function already registered")
	// ErrArity is returned when a call does not provide exactly the declared parameters
	ErrArity = errors.New("wrong number of arguments")
	// ErrInvalidArgument is returned by handlers rejecting an argument value
	ErrInvalidArgument = errors.New("invalid argument")
)

// Handler computes a function result from already-evaluated arguments
type Handler func(args Args) (value.Value, error)

// Function is a registered, side-effect-free function callable from update actions
type Function struct {
	Name    string
	Params  []string
	Handler Handler
}

// Arity returns the number of declared parameters
func (f Function) Arity() int {
	return len(f.Params)
}

// Registry holds the closed set of callable functions.
// Registration happens at start-up; calls are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

// Register adds a function. Its arity is the number of params.
func (r *Registry) Register(name string, params []string, handler Handler) error {
	if name == "" || handler == nil {
		return errors.New("function name and handler are mandatory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	r.funcs[name] = Function{Name: name, Params: append([]string(nil), params...), Handler: handler}
	return nil
}

// MustRegister is Register for start-up code. It panics on error.
func (r *Registry) MustRegister(name string, params []string, handler Handler) {
	if err := r.Register(name, params, handler); err != nil {
		panic(err)
	}
}

// Lookup returns a registered function
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.funcs[name]
	return f, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns every registered function name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call binds args to the function parameters and runs it.
// args is either an object (named arguments) or an array (positional arguments).
func (r *Registry) Call(name string, args value.Value) (value.Value, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return value.Missing, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	bound, err := f.bind(args)
	if err != nil {
		return value.Missing, err
	}
	out, err := f.Handler(bound)
	if err != nil {
		return value.Missing, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (f Function) bind(args value.Value) (Args, error) {
	bound := Args{function: f.Name, values: make(map[string]value.Value, len(f.Params))}
	switch args.Kind() {
	case value.KindObject:
		named, _ := args.Object()
		if len(named) != len(f.Params) {
			return Args{}, fmt.Errorf("%w: %s expects %v, got %d named arguments", ErrArity, f.Name, f.Params, len(named))
		}
		for _, p := range f.Params {
			v, ok := named[p]
			if !ok {
				return Args{}, fmt.Errorf("%w: %s is missing argument %q", ErrArity, f.Name, p)
			}
			bound.values[p] = v
		}
	case value.KindArray:
		positional, _ := args.Array()
		if len(positional) != len(f.Params) {
			return Args{}, fmt.Errorf("%w: %s expects %d, got %d", ErrArity, f.Name, len(f.Params), len(positional))
		}
		for i, p := range f.Params {
			bound.values[p] = positional[i]
		}
	case value.KindMissing, value.KindNull:
		if len(f.Params) != 0 {
			return Args{}, fmt.Errorf("%w: %s expects %d, got none", ErrArity, f.Name, len(f.Params))
		}
	default:
		if len(f.Params) != 1 {
			return Args{}, fmt.Errorf("%w: %s expects %d, got 1", ErrArity, f.Name, len(f.Params))
		}
		bound.values[f.Params[0]] = args
	}
	return bound, nil
}
