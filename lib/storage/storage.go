// Package storage defines the persistence collaborator contract (spec §6):
// backend-agnostic so the acceptance pipeline and subscription engine never
// assume bbolt, sqlite, or any other concrete store.
package storage

import (
	"context"
	"errors"

	"github.com/portwatch/nostrelay/lib/nostr"
)

// ErrNotFound is returned by DeleteByID when no event with that id exists.
var ErrNotFound = errors.New("storage: event not found")

// EmitFunc receives one matching event during a Query scan. Returning a
// non-nil error aborts the scan and propagates out of Query.
type EmitFunc func(*nostr.Event) error

// Store is the persistence collaborator. Implementations: boltstore (default,
// embedded), sqlitestore (relational alternative). Both satisfy identical
// semantics so callers are backend-agnostic.
type Store interface {
	// Persist stores event, applying kind-specific replacement semantics:
	//   - regular: inserted; a duplicate id is a no-op success.
	//   - replaceable: inserted only if it beats the existing event for
	//     (pubkey, kind): greater created_at, or equal created_at with a
	//     lexicographically smaller id. The beaten existing event is removed
	//     in the same transaction.
	//   - parameterized-replaceable: as above, keyed by (pubkey, kind, d-tag).
	// Persist never rejects on policy; policy decisions are the acceptance
	// pipeline's job. Persist returning nil means the event or a dominating
	// replacement is durably stored.
	Persist(ctx context.Context, event *nostr.Event) error

	// DeleteByID removes the event with the given id. Returns ErrNotFound if
	// no such event is stored (callers should treat this as a non-error
	// no-op per the deletion engine's idempotency requirement).
	DeleteByID(ctx context.Context, id string) error

	// Query streams every stored event matching filter to emit, newest
	// created_at first with ties in ascending id order, honoring
	// filter.Limit (500 when unset).
	// Query returns once the scan completes, emit returns an error, or ctx
	// is canceled.
	Query(ctx context.Context, filter nostr.Filter, emit EmitFunc) error

	// Count returns the number of stored events matching filter. Ignores
	// filter.Limit.
	Count(ctx context.Context, filter nostr.Filter) (int64, error)

	// Close releases any resources held by the store (file handles,
	// connection pools). Safe to call once during shutdown.
	Close() error
}
