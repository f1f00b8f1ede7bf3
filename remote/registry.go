package remote

import (
	"sort"
	"sync"
)

// Descriptor names a remote and the location of its entry.
type Descriptor struct {
	Name          string
	EntryLocation string
}

// Registry tracks the entry location registered for each remote name.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]string
	invalidators []func(name string)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]string)}
}

// OnInvalidate registers fn to be called whenever a name is re-registered
// with a different location or forcibly replaced.
func (r *Registry) OnInvalidate(fn func(name string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidators = append(r.invalidators, fn)
}

// Ensure registers d. Re-registering an identical location is a no-op; a
// different location replaces the old one and invalidates its container.
func (r *Registry) Ensure(d Descriptor) {
	r.mu.Lock()
	old, ok := r.entries[d.Name]
	if ok && old == d.EntryLocation {
		r.mu.Unlock()
		return
	}
	r.entries[d.Name] = d.EntryLocation
	fns := r.invalidators
	r.mu.Unlock()

	if ok {
		notify(fns, d.Name)
	}
}

// Force registers d and invalidates any container for d.Name, even when the
// location is unchanged.
func (r *Registry) Force(d Descriptor) {
	r.mu.Lock()
	r.entries[d.Name] = d.EntryLocation
	fns := r.invalidators
	r.mu.Unlock()

	notify(fns, d.Name)
}

// Lookup returns the descriptor registered for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Name: name, EntryLocation: loc}, true
}

// Names lists registered remote names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func notify(fns []func(string), name string) {
	for _, fn := range fns {
		fn(name)
	}
}
