package scene

import (
	"sort"
	"sync"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Registry owns the live objects of one scheduler or replay engine.
// Numbers start at 1 and are not reused until DestroyAll starts a new
// trial.
type Registry struct {
	mu      sync.RWMutex
	objects map[int]*Object
	next    int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[int]*Object),
		next:    1,
	}
}

// Create stores o under the next free number and returns the stored copy.
func (r *Registry) Create(o Object) *Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.Number = r.next
	r.next++
	stored := o
	r.objects[o.Number] = &stored
	return &stored
}

// Insert stores o under its own number, replacing any object already there.
func (r *Registry) Insert(o Object) *Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := o
	r.objects[o.Number] = &stored
	if o.Number >= r.next {
		r.next = o.Number + 1
	}
	return &stored
}

// Get returns object n.
func (r *Registry) Get(n int) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[n]
	return o, ok
}

// Move recenters object n. It reports false if n is not live.
func (r *Registry) Move(n int, center geom.Vec3) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[n]
	if !ok {
		return false
	}
	o.Bounds.Center = center
	return true
}

// Destroy removes object n. Destroying an absent object is a no-op.
func (r *Registry) Destroy(n int) (Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[n]
	if !ok {
		return Object{}, false
	}
	delete(r.objects, n)
	return *o, true
}

// DestroyAll removes every object, restarts numbering and returns how many
// were removed.
func (r *Registry) DestroyAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.objects)
	clear(r.objects)
	r.next = 1
	return n
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Live returns the live objects in ascending number order. The pointers
// stay owned by the registry.
func (r *Registry) Live() []*Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Object, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Snapshot returns copies of the live objects in number order, safe to
// hand to other goroutines.
func (r *Registry) Snapshot() []Object {
	live := r.Live()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Object, len(live))
	for i, o := range live {
		out[i] = *o
	}
	return out
}
