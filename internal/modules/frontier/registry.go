package frontier

import (
	"sync"
)

// Registry keeps the most recent simulation results in memory, evicting the
// oldest once capacity is reached. Results are not persisted.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	runs     map[string]*SimulationResult
}

// NewRegistry creates a registry holding at most capacity results.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		runs:     make(map[string]*SimulationResult, capacity),
	}
}

// Put stores a result under its RunID.
func (r *Registry) Put(result *SimulationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[result.RunID]; !exists {
		r.order = append(r.order, result.RunID)
	}
	r.runs[result.RunID] = result

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.runs, oldest)
	}
}

// Get returns the result for id.
func (r *Registry) Get(id string) (*SimulationResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.runs[id]
	return result, ok
}

// IDs returns the stored run ids, newest first.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	for i, id := range r.order {
		ids[len(r.order)-1-i] = id
	}
	return ids
}

// Len returns the number of stored results.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
