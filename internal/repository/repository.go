// Package repository contains the storage-independent repository contracts.
// Implementations live in subpackages (memory, postgres) inside this directory.
package repository

import (
	"context"
	"math"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Base is the generic CRUD contract every storage backend fulfils for an
// entity type T keyed by ID. Domain repositories hold a Base as a field.
type Base[T any, ID comparable] interface {
	// Create stores entity. The identifier is generated by the caller;
	// a collision fails with errs.KindAlreadyExists.
	Create(ctx context.Context, entity T) (*T, error)

	// FindByID returns nil, nil when the identifier is absent.
	FindByID(ctx context.Context, id ID) (*T, error)

	// Update loads the stored entity, applies patch to it and stores the
	// result. A missing identifier fails with errs.KindNotFound.
	Update(ctx context.Context, id ID, patch func(*T) error) (*T, error)

	// Delete removes the entity; a missing identifier fails with errs.KindNotFound.
	Delete(ctx context.Context, id ID) error

	// List returns one page and the total number of stored entities.
	List(ctx context.Context, p Pagination) (*PageResult[T], error)

	// Find returns the entities matching every condition of q.
	Find(ctx context.Context, q Query) ([]T, error)

	Exists(ctx context.Context, id ID) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize fills defaults, clamps the page size and caps the page so that
// Offset never overflows.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if maxPage := math.MaxInt / p.PageSize; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Offset is the number of entities preceding the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit is the maximum number of entities on the page.
func (p Pagination) Limit() int {
	return p.PageSize
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items      []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// NewPageResult computes TotalPages from total and the page size.
func NewPageResult[T any](items []T, total int, p Pagination) *PageResult[T] {
	pages := 0
	if p.PageSize > 0 {
		pages = (total + p.PageSize - 1) / p.PageSize
	}
	if items == nil {
		items = make([]T, 0)
	}
	return &PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: pages,
	}
}
