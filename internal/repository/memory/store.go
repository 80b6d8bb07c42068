// Package memory provides an in-process implementation of repository.Base.
package memory

import (
	"context"
	"slices"
	"sync"

	"userrepo/internal/errs"
	"userrepo/internal/repository"
)

// Entity is what Store needs from a stored type: its identifier, a deep
// copy so callers never alias stored state, and named field access for
// repository.Query evaluation.
type Entity[T any, ID comparable] interface {
	GetID() ID
	Clone() T
	repository.FieldValuer
}

// Store keeps entities in a map guarded by a single RWMutex. Reads share the
// lock, writes hold it exclusively, and no operation blocks on I/O while
// holding it. Listing follows insertion order.
type Store[T Entity[T, ID], ID comparable] struct {
	mu    sync.RWMutex
	items map[ID]T
	order []ID
}

// NewStore returns an empty store.
func NewStore[T Entity[T, ID], ID comparable]() *Store[T, ID] {
	return &Store[T, ID]{items: make(map[ID]T)}
}

// Create inserts entity; an existing identifier fails with AlreadyExists.
func (s *Store[T, ID]) Create(_ context.Context, entity T) (*T, error) {
	id := entity.GetID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return nil, errs.AlreadyExists(id)
	}
	s.items[id] = entity.Clone()
	s.order = append(s.order, id)

	out := entity.Clone()
	return &out, nil
}

// FindByID returns a copy of the stored entity, or nil when absent.
func (s *Store[T, ID]) FindByID(_ context.Context, id ID) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	out := e.Clone()
	return &out, nil
}

// Update applies patch to a copy and stores it only if patch succeeds.
// patch runs under the write lock and must not block.
func (s *Store[T, ID]) Update(_ context.Context, id ID, patch func(*T) error) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return nil, errs.NotFound(id)
	}
	next := e.Clone()
	if err := patch(&next); err != nil {
		return nil, err
	}
	if next.GetID() != id {
		return nil, errs.Internal("identifier is immutable", nil)
	}
	s.items[id] = next

	out := next.Clone()
	return &out, nil
}

// Delete removes the entity; a missing identifier fails with NotFound.
func (s *Store[T, ID]) Delete(_ context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return errs.NotFound(id)
	}
	delete(s.items, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// List returns the requested page in insertion order.
func (s *Store[T, ID]) List(_ context.Context, p repository.Pagination) (*repository.PageResult[T], error) {
	p = p.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	start := max(0, min(p.Offset(), total))
	end := min(start+p.Limit(), total)

	items := make([]T, 0, end-start)
	for _, id := range s.order[start:end] {
		items = append(items, s.items[id].Clone())
	}
	return repository.NewPageResult(items, total, p), nil
}

// Find scans a snapshot taken under the read lock; matching happens after
// the lock is released.
func (s *Store[T, ID]) Find(_ context.Context, q repository.Query) ([]T, error) {
	snapshot := s.Snapshot()

	out := make([]T, 0)
	for _, e := range snapshot {
		ok, err := q.Matches(e)
		if err != nil {
			return nil, errs.Internal("evaluate query", err)
		}
		if !ok {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Exists reports whether id is stored.
func (s *Store[T, ID]) Exists(_ context.Context, id ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[id]
	return ok, nil
}

// Count returns the number of stored entities.
func (s *Store[T, ID]) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items), nil
}

// Snapshot copies every entity in insertion order.
func (s *Store[T, ID]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Clear removes every entity.
func (s *Store[T, ID]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[ID]T)
	s.order = nil
}
