package subscription

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// Registry errors.
var (
	ErrDuplicateSubscription = errors.New("subscription already registered for sim")
)

// Registration is the result of registering a subscriber on an entity.
type Registration struct {
	// Entity the subscriber was added to.
	Entity *Entity

	// First is true when this registration took the entity from zero to one
	// subscriber, or found the previous attachment failed and started a new
	// one. The caller must send the subscribe request.
	First bool

	// Attachment is the outcome the subscriber should wait on.
	Attachment *Attachment
}

// Registry maps SIM identifiers to their subscription state.
// Entities are created on first use and kept for the lifetime of the registry.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
	}
}

// Get returns the entity for id, if it exists.
func (r *Registry) Get(id string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// getOrCreate returns the entity for id, creating it if needed.
func (r *Registry) getOrCreate(id string) *Entity {
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[id]; ok {
		return e
	}
	e = newEntity(id)
	r.entities[id] = e
	return e
}

// Register adds s to the subscriber set of id.
// Registering the same subscriber twice on one entity fails with
// ErrDuplicateSubscription and leaves the count unchanged.
func (r *Registry) Register(id string, s Subscriber) (Registration, error) {
	e := r.getOrCreate(id)

	count, att, renewed, err := e.add(s)
	if err != nil {
		return Registration{Entity: e, Attachment: att}, err
	}

	return Registration{
		Entity:     e,
		First:      count == 1 || renewed,
		Attachment: att,
	}, nil
}

// Unregister removes s from the given entities and returns the ids of the
// entities that dropped to zero subscribers as a result. The caller must send
// an unsubscribe request for each of them. Entities s was not registered on
// are skipped.
func (r *Registry) Unregister(s Subscriber, ids []string) []string {
	var detached []string
	for _, id := range ids {
		e, ok := r.Get(id)
		if !ok {
			continue
		}
		removed, count := e.remove(s)
		if removed && count == 0 {
			detached = append(detached, id)
		}
	}
	return detached
}

// Entities returns all entities, sorted by id.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	list := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		list = append(list, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Entity) int {
		return strings.Compare(a.id, b.id)
	})
	return list
}

// Snapshot returns the state of all entities, sorted by id.
func (r *Registry) Snapshot() []EntityInfo {
	entities := r.Entities()
	infos := make([]EntityInfo, len(entities))
	for i, e := range entities {
		infos[i] = e.Info()
	}
	return infos
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
