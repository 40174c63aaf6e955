package repository

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.

import (
	"context"
	"errors"

	"resumeboost/internal/model"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// RunRepository persists analysis runs. No business logic here, strictly persistence operations.
type RunRepository interface {
	// Create inserts a new run record.
	Create(ctx context.Context, run *model.Run) error

	// Update stores the status, outcome fields and UpdatedAt of an existing run.
	Update(ctx context.Context, run *model.Run) error

	// FindByID returns a run by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Run, error)

	// List returns a page of runs, newest first, and the total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Run], error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
