package session

import (
	"sort"
	"sync"
)

// Registry holds the named controllers mounted by the application.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Add registers c under its name, replacing any previous controller of that name.
func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[c.Name()] = c
}

// Get looks up a controller by name.
func (r *Registry) Get(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[name]
	return c, ok
}

// List returns all controllers sorted by name.
func (r *Registry) List() []*Controller {
	r.mu.RLock()
	list := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Close closes every registered controller.
func (r *Registry) Close() {
	for _, c := range r.List() {
		c.Close()
	}
}
