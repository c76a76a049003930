package registry

import (
	"concierge/internal/worker"
)

// Factory builds an executable worker instance. Construction is assumed
// cheap; the registry does no caching of its own.
type Factory func() (worker.Worker, error)

// Entry is the presentable face of a registered worker.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// Registry is a static directory mapping operation names to capability
// descriptions and worker factories. Insertion order is preserved for
// the planner's menu; it carries no semantic weight.
type Registry struct {
	entries   []Entry
	factories map[string]Factory
}

func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a worker visible on the planning menu. Registering the
// same name twice replaces the factory and keeps the original position.
func (r *Registry) Register(name, description string, f Factory) {
	r.add(name, description, false, f)
}

// RegisterHidden adds a worker excluded from the planning menu, for
// entries only the router dispatches to directly (the planner itself,
// the bootstrap flow).
func (r *Registry) RegisterHidden(name, description string, f Factory) {
	r.add(name, description, true, f)
}

func (r *Registry) add(name, description string, hidden bool, f Factory) {
	if _, exists := r.factories[name]; !exists {
		r.entries = append(r.entries, Entry{Name: name, Description: description, Hidden: hidden})
	} else {
		for i := range r.entries {
			if r.entries[i].Name == name {
				r.entries[i].Description = description
				r.entries[i].Hidden = hidden
				break
			}
		}
	}
	r.factories[name] = f
}

// Instantiate builds the named worker.
func (r *Registry) Instantiate(name string) (worker.Worker, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &worker.UnknownWorkerError{Name: name}
	}
	return f()
}

// Describe returns the capability description for one worker.
func (r *Registry) Describe(name string) (string, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e.Description, true
		}
	}
	return "", false
}

// List returns every entry in insertion order.
func (r *Registry) List() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Menu returns the visible entries in insertion order, the set the
// planner presents to the reasoner.
func (r *Registry) Menu() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out
}
