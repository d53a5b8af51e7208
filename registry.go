package cogito

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

type registryEntry struct {
	action  Action
	spec    ActionSpec
	enabled bool
}

// Registry maps action names to actions. Actions are enabled when registered. A Registry is
// safe for concurrent use; Think reads it while another goroutine may register or toggle actions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry creates a registry holding the given actions.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{entries: map[string]*registryEntry{}}
	for _, action := range actions {
		if err := r.Register(action); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func newEntry(action Action) (*registryEntry, error) {
	if action == nil {
		return nil, goerr.Wrap(ErrInvalidAction, "action is nil")
	}
	spec := action.Spec()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &registryEntry{action: action, spec: spec, enabled: true}, nil
}

// Register adds an action. It fails with ErrActionNameConflict when the name is taken.
func (r *Registry) Register(action Action) error {
	entry, err := newEntry(action)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.spec.Name]; ok {
		return goerr.Wrap(ErrActionNameConflict, "action already registered", goerr.V("action", entry.spec.Name))
	}
	r.entries[entry.spec.Name] = entry
	return nil
}

// Upsert adds an action or replaces the one with the same name. A replaced action keeps its
// enabled flag.
func (r *Registry) Upsert(action Action) error {
	entry, err := newEntry(action)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[entry.spec.Name]; ok {
		entry.enabled = old.enabled
	}
	r.entries[entry.spec.Name] = entry
	return nil
}

// RegisterSet registers every action of the set. Nothing is registered if any action is invalid
// or conflicts.
func (r *Registry) RegisterSet(ctx context.Context, set ActionSet) error {
	actions, err := set.Actions(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get actions from action set")
	}

	entries := make([]*registryEntry, 0, len(actions))
	seen := map[string]struct{}{}
	for _, action := range actions {
		entry, err := newEntry(action)
		if err != nil {
			return err
		}
		if _, ok := seen[entry.spec.Name]; ok {
			return goerr.Wrap(ErrActionNameConflict, "duplicated action in set", goerr.V("action", entry.spec.Name))
		}
		seen[entry.spec.Name] = struct{}{}
		entries = append(entries, entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if _, ok := r.entries[entry.spec.Name]; ok {
			return goerr.Wrap(ErrActionNameConflict, "action already registered", goerr.V("action", entry.spec.Name))
		}
	}
	for _, entry := range entries {
		r.entries[entry.spec.Name] = entry
	}
	return nil
}

// Remove deletes an action. It reports whether the action existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[name]
	delete(r.entries, name)
	return ok
}

// SetEnabled toggles an action. It returns ErrUnknownAction if the name is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return goerr.Wrap(ErrUnknownAction, "cannot toggle action", goerr.V("action", name))
	}
	entry.enabled = enabled
	return nil
}

// Lookup returns the action registered under name, whether it is enabled, and whether it was found.
func (r *Registry) Lookup(name string) (Action, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false, false
	}
	return entry.action, entry.enabled, true
}

// Enabled returns the specs of the enabled actions sorted by name.
func (r *Registry) Enabled() []ActionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ActionSpec, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.enabled {
			specs = append(specs, entry.spec)
		}
	}
	slices.SortFunc(specs, func(a, b ActionSpec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return specs
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
