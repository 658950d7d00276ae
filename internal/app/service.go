// Package app holds the entity repository: typed CRUD over the cached
// key-value store, domain invariant enforcement, and replication scheduling.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/propiq/propiq/internal/cache"
	"github.com/propiq/propiq/internal/domain"
	"github.com/propiq/propiq/internal/storage"
)

// EstateService orchestrates every entity mutation. Each mutating call
// validates first, applies invariants, persists through the key-value store,
// invalidates the read cache, and finally enqueues a best-effort replication
// push. The caller observes a fully consistent local state on return; the
// push completes (or fails) later.
type EstateService struct {
	// mu renders the original single-threaded mutation discipline: two
	// repository calls never interleave mid-mutation.
	mu        sync.Mutex
	store     *storage.Store
	cache     *cache.Cache
	validator domain.PayloadValidator
	guard     domain.OccupancyGuard
	queue     domain.ReplicationQueue
}

// NewEstateService creates a repository with the given collaborators.
func NewEstateService(store *storage.Store, c *cache.Cache, validator domain.PayloadValidator, guard domain.OccupancyGuard, queue domain.ReplicationQueue) *EstateService {
	return &EstateService{
		store:     store,
		cache:     c,
		validator: validator,
		guard:     guard,
		queue:     queue,
	}
}

// SetNamespace switches the active tenant namespace. The switch is a
// barrier: the cache is reset and no state from the previous namespace
// survives it.
func (s *EstateService) SetNamespace(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetNamespace(namespace)
	s.cache.Reset()
}

// collection returns the decoded list for kind, reading through the cache.
func collection[T any](s *EstateService, kind domain.Kind) ([]T, error) {
	if v, ok := s.cache.Get(kind); ok {
		if list, ok := v.([]T); ok {
			return list, nil
		}
	}

	key := domain.Kinds[kind].StorageKey
	var list []T
	if _, err := s.store.Get(key, &list); err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	if list == nil {
		list = []T{}
	}
	s.cache.Put(kind, list)
	return list, nil
}

// persist writes the collection and drops the cache entry for kind. The
// cache is invalidated even when the write fails, so a partially mutated
// in-memory list can never be served afterwards.
func persist[T any](s *EstateService, kind domain.Kind, list []T) error {
	s.cache.Invalidate(kind)
	key := domain.Kinds[kind].StorageKey
	if err := s.store.Set(key, list); err != nil {
		return err
	}
	return nil
}

// replicate schedules a fire-and-forget push of the mutation. Enqueue
// failures are logged and swallowed; local state stays authoritative.
func (s *EstateService) replicate(ctx context.Context, kind domain.Kind, action domain.Action, id string, payload any) {
	namespace := s.store.Namespace()
	if namespace == "" {
		return
	}
	if err := s.queue.Push(ctx, namespace, kind, action, id, payload); err != nil {
		slog.ErrorContext(ctx, "replication enqueue failed",
			"kind", kind, "action", action, "id", id, "error", err)
	}
}

// mergePatch overlays a partial payload onto an entity through its JSON
// representation, returning the merged entity. Type mismatches in the patch
// surface as a ValidationError.
func mergePatch[T any](entity T, patch map[string]any) (T, error) {
	var out T

	base, err := json.Marshal(entity)
	if err != nil {
		return out, fmt.Errorf("encoding entity for merge: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return out, fmt.Errorf("decoding entity for merge: %w", err)
	}
	for field, value := range patch {
		m[field] = value
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("encoding merged entity: %w", err)
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		return out, domain.NewValidationError("patch", "field type mismatch")
	}
	return out, nil
}

// patchInt reads a numeric patch value, which arrives as float64 from JSON
// or as a native int from in-process callers.
func patchInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
