// Package localstore persists the small amount of client-side state the
// panel keeps between sessions: the CSRF token, the last active section and
// the market search term. Implementations include PostgreSQL, Redis and
// in-memory (for testing and single-process deployments).
package localstore

import (
	"context"
	"errors"
	"time"
)

// Well-known keys.
const (
	KeyCSRFToken    = "csrf_token"
	KeyLastSection  = "last_section"
	KeyMarketSearch = "market_search"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("localstore: key not found")

// Store is the key/value persistence interface. Logout calls Clear.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A ttl of zero keeps it until cleared.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
}
