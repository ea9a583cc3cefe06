package types

import "context"

// Table provides uniform CRUD operations for a single reference entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct
// (*User, *Series, *Setting, *Language).
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(ctx context.Context, id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated (key-addressed tables require an id). Returns the id used.
	Set(ctx context.Context, id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(ctx context.Context, id string) error

	// Fetch returns all entities matching the filter. An empty filter
	// returns every entity in the table.
	Fetch(ctx context.Context, filter map[string]any) ([]any, error)
}
