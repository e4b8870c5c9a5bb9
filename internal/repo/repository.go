package repo

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Store is a key-value port: records are opaque JSON documents addressed by
// collection and id. Implementations must be safe for concurrent use.
type Store interface {
	// List returns the ids in collection, sorted. An unknown collection is empty.
	List(ctx context.Context, collection string) ([]string, error)
	// Read returns ErrNotFound when the record does not exist.
	Read(ctx context.Context, collection, id string) ([]byte, error)
	// Create returns ErrExists when the id is taken.
	Create(ctx context.Context, collection, id string, data []byte) error
	// Update replaces an existing record; ErrNotFound if there is none.
	Update(ctx context.Context, collection, id string, data []byte) error
	// Delete returns ErrNotFound when the record does not exist.
	Delete(ctx context.Context, collection, id string) error
}
