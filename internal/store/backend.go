package store

import (
	"context"
)

// Backend persists records. Two implementations exist: the bd
// issue-tracker command and the self-managed record file. Selection
// happens once, by capability probe at store construction — callers
// never learn which backend served them.
type Backend interface {
	// Init prepares the backing storage (creates the record file or
	// initializes the tracker database).
	Init(ctx context.Context) error

	// Create persists a new record and returns its id. When rec.ID is
	// empty the backend assigns one.
	Create(ctx context.Context, rec Record) (string, error)

	// Get returns the record with the given id, or nil when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns every record. Unreadable lines are skipped, not
	// fatal.
	List(ctx context.Context) ([]Record, error)

	// Update rewrites the record with rec.ID in place.
	Update(ctx context.Context, rec Record) error

	// Identity names the backing storage for cache keying.
	Identity() string
}
