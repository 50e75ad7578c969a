package variable

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the measurement variables the instrument exposes.
//
// Variables are kept in declaration order; that order decides which
// variable substitutes for a missing or unknown one during lenient
// sweep normalisation, so it is part of the behavioural contract.
//
// All public methods are thread-safe. Returned variables are copies;
// callers can safely modify them.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Variable
	ordered []string // IDs in declaration order
	logger  Logger
}

// NewRegistry creates an empty variable registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Variable),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add registers a variable. Declaration order is the order of Add calls.
// Returns ErrExists if a variable with the same ID is already registered,
// or a validation error if the variable is malformed.
func (r *Registry) Add(v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[v.ID]; ok {
		return fmt.Errorf("%w: %q", ErrExists, v.ID)
	}

	r.byID[v.ID] = v.Copy()
	r.ordered = append(r.ordered, v.ID)

	r.logger.Debug("variable registered", "id", v.ID, "name", v.Name)
	return nil
}

// Get retrieves a variable by ID.
// Returns ErrNotFound if the variable is not registered.
func (r *Registry) Get(id string) (*Variable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return v.Copy(), nil
}

// Has reports whether a variable with the given ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// List returns all variables in declaration order.
func (r *Registry) List() []Variable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Variable, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, *r.byID[id].Copy())
	}
	return out
}

// IDs returns all variable IDs in declaration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Count returns the number of registered variables.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
