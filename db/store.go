// Package db holds the record store interface and its backends.
package db

import (
	"context"

	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("school.db")

// Store is the record store for one entity type. Identifiers are taken as
// strings from the request path; an identifier the backend cannot parse is
// treated as absent rather than as an error.
type Store[T any] interface {
	// FindBy returns the first record whose column equals value, or nil.
	FindBy(ctx context.Context, column string, value any) (*T, error)

	// List returns the records whose column matches the SQL LIKE pattern.
	// An empty pattern returns every record. The result is never nil.
	List(ctx context.Context, column, pattern string) ([]T, error)

	// Get returns the record with the given identifier, or nil.
	Get(ctx context.Context, id string) (*T, error)

	// Create inserts rec and sets its assigned identifier. A unique column
	// collision is reported as errors.AlreadyExists.
	Create(ctx context.Context, rec *T) error

	// Update overwrites the given columns of the record with the identifier.
	Update(ctx context.Context, id string, values map[string]any) error

	// Delete removes the record and reports the number of rows affected.
	Delete(ctx context.Context, id string) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
