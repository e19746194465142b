package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Migration upgrades a payload from one schema version to the next.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Schema describes the current version of a stored type and how to reach it.
// Migrations[k] upgrades version k to k+1.
type Schema struct {
	Version    int
	Migrations map[int]Migration
}

// Repository stores one typed value per namespace under a fixed name.
type Repository[T any] struct {
	backend Backend
	name    string
	schema  Schema

	mu     sync.RWMutex
	subs   map[int]func(namespace string, value T)
	nextID int
}

// NewRepository binds a typed value to name on backend.
func NewRepository[T any](backend Backend, name string, schema Schema) *Repository[T] {
	return &Repository[T]{
		backend: backend,
		name:    name,
		schema:  schema,
		subs:    make(map[int]func(string, T)),
	}
}

func (r *Repository[T]) key(namespace string) (string, error) {
	if namespace == "" {
		return "", errors.New("localstate: namespace required")
	}
	return namespace + ":" + r.name, nil
}

// Get returns the stored value, or the zero value when nothing was stored. Older
// records are migrated and written back at the current version.
func (r *Repository[T]) Get(ctx context.Context, namespace string) (T, error) {
	var zero T
	key, err := r.key(namespace)
	if err != nil {
		return zero, err
	}

	rec, err := r.backend.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("load %s: %w", key, err)
	}
	if rec.Version > r.schema.Version {
		return zero, fmt.Errorf("%s at v%d: %w", key, rec.Version, ErrFutureSchema)
	}

	if rec.Version < r.schema.Version {
		rec, err = r.migrate(rec)
		if err != nil {
			return zero, fmt.Errorf("migrate %s: %w", key, err)
		}
		if err := r.backend.Save(ctx, key, rec); err != nil {
			return zero, fmt.Errorf("save migrated %s: %w", key, err)
		}
	}

	var value T
	if err := json.Unmarshal(rec.Data, &value); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository[T]) migrate(rec Record) (Record, error) {
	for rec.Version < r.schema.Version {
		m, ok := r.schema.Migrations[rec.Version]
		if !ok {
			return rec, fmt.Errorf("no migration from v%d", rec.Version)
		}
		data, err := m(rec.Data)
		if err != nil {
			return rec, fmt.Errorf("v%d->v%d: %w", rec.Version, rec.Version+1, err)
		}
		rec = Record{Version: rec.Version + 1, Data: data}
	}
	return rec, nil
}

// Set replaces the stored value and notifies subscribers.
func (r *Repository[T]) Set(ctx context.Context, namespace string, value T) error {
	key, err := r.key(namespace)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.backend.Save(ctx, key, Record{Version: r.schema.Version, Data: data}); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	r.notify(namespace, value)
	return nil
}

// Delete removes the stored value; subscribers see the zero value.
func (r *Repository[T]) Delete(ctx context.Context, namespace string) error {
	key, err := r.key(namespace)
	if err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	var zero T
	r.notify(namespace, zero)
	return nil
}

// Subscribe registers fn for every write made through this repository.
func (r *Repository[T]) Subscribe(fn func(namespace string, value T)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Repository[T]) notify(namespace string, value T) {
	r.mu.RLock()
	fns := make([]func(string, T), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(namespace, value)
	}
}
