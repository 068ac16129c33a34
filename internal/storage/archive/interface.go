// Package archive persists run artifacts (trade logs and result
// summaries) to a storage backend, so sweep output survives the process
// and downstream tooling can pull it from a shared bucket.
package archive

import "context"

// Storage is a flat key/value artifact store.
type Storage interface {
	// Write stores data at the given path.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path.
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)
}
