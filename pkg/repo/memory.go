package repo

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Memory is the in-memory counterpart of Badger, used by tests and as the
// default store before a database path is configured. It keeps the same
// copy-on-save/copy-on-find semantics by round-tripping entities through
// CBOR, so tests exercise the exact serialization the real store uses.
type Memory[T any, K ~string] struct {
	id func(*T) K

	mu      sync.RWMutex
	entries map[K][]byte
	order   []K
}

// NewMemory creates an empty in-memory repository.
func NewMemory[T any, K ~string](id func(*T) K) *Memory[T, K] {
	return &Memory[T, K]{id: id, entries: make(map[K][]byte)}
}

// Save stores a copy of the entity.
func (r *Memory[T, K]) Save(entity *T) error {
	value, err := cbor.Marshal(entity)
	if err != nil {
		return fmt.Errorf("repo: encode: %w", err)
	}
	id := r.id(entity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = value
	return nil
}

// Remove deletes the entity by id.
func (r *Memory[T, K]) Remove(id K) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		return nil
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Find returns a copy of the entity stored under id, or ErrNotFound.
func (r *Memory[T, K]) Find(id K) (*T, error) {
	r.mu.RLock()
	value, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	entity := new(T)
	if err := cbor.Unmarshal(value, entity); err != nil {
		return nil, fmt.Errorf("repo: decode: %w", err)
	}
	return entity, nil
}

// All returns copies of every stored entity in insertion order.
func (r *Memory[T, K]) All() ([]*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*T, 0, len(r.order))
	for _, id := range r.order {
		entity := new(T)
		if err := cbor.Unmarshal(r.entries[id], entity); err != nil {
			return nil, fmt.Errorf("repo: decode: %w", err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// NextID mints a fresh identifier.
func (r *Memory[T, K]) NextID() K {
	return K(uuid.NewString())
}
