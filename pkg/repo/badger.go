package repo

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Badger is a typed repository over a KVStore namespace. T is the entity
// type, K its string-like identifier. Values are CBOR-encoded; decoding on
// Find/All yields fresh copies, so aliasing the stored entity is impossible.
type Badger[T any, K ~string] struct {
	store  *KVStore
	prefix string
	id     func(*T) K
}

// NewBadger creates a repository in the given key namespace. The id
// function extracts an entity's identifier for keying.
func NewBadger[T any, K ~string](store *KVStore, prefix string, id func(*T) K) *Badger[T, K] {
	return &Badger[T, K]{store: store, prefix: prefix, id: id}
}

func (r *Badger[T, K]) key(id K) string {
	return r.prefix + "/" + string(id)
}

// Save writes the entity, overwriting any previous version.
func (r *Badger[T, K]) Save(entity *T) error {
	value, err := cbor.Marshal(entity)
	if err != nil {
		return fmt.Errorf("repo %s: encode: %w", r.prefix, err)
	}
	return r.store.Put(r.key(r.id(entity)), value)
}

// Remove deletes the entity by its identifier.
func (r *Badger[T, K]) Remove(id K) error {
	return r.store.Delete(r.key(id))
}

// Find returns the entity stored under id, or ErrNotFound.
func (r *Badger[T, K]) Find(id K) (*T, error) {
	value, err := r.store.Get(r.key(id))
	if err != nil {
		return nil, err
	}
	entity := new(T)
	if err := cbor.Unmarshal(value, entity); err != nil {
		return nil, fmt.Errorf("repo %s: decode: %w", r.prefix, err)
	}
	return entity, nil
}

// All returns every entity in the namespace.
func (r *Badger[T, K]) All() ([]*T, error) {
	values, err := r.store.ListPrefix(r.prefix + "/")
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(values))
	for _, value := range values {
		entity := new(T)
		if err := cbor.Unmarshal(value, entity); err != nil {
			return nil, fmt.Errorf("repo %s: decode: %w", r.prefix, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// NextID mints a fresh identifier.
func (r *Badger[T, K]) NextID() K {
	return K(uuid.NewString())
}
