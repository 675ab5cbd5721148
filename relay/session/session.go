// Package session issues and remembers the client session ids handed out by
// the relay's bootstrap endpoint.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an issued id is remembered when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Store records issued client session ids.
type Store interface {
	// Create issues a new id and records it.
	Create(ctx context.Context) (string, error)

	// Exists reports whether id was issued and has not expired.
	Exists(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

func newID() string {
	return uuid.NewString()
}
