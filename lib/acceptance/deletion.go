package acceptance

import (
	"context"

	"github.com/portwatch/nostrelay/lib/logging"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// ProcessDeletion implements the deletion engine of spec §4.5: for each
// "e" tag on a kind-5 event, look up its target and delete it only if the
// deleter is authorized. Grounded in the teacher's kind5handler.go e-tag
// loop, without its HORNET-specific cascade-delete extension.
//
// Unauthorized or missing targets are silently skipped, per spec; deletion
// results are never surfaced per-target to the publisher.
func ProcessDeletion(ctx context.Context, store storage.Store, deletion *nostr.Event) {
	for _, id := range deletion.ETags() {
		target, err := findByID(ctx, store, id)
		if err != nil {
			logging.Debugf("deletion: lookup %s: %v", id, err)
			continue
		}
		if target == nil {
			continue
		}

		authorized := false
		if target.Kind == nostr.KindGiftWrap {
			for _, p := range target.PTags() {
				if p == deletion.PubKey {
					authorized = true
					break
				}
			}
		} else {
			authorized = target.PubKey == deletion.PubKey
		}

		if !authorized {
			continue
		}

		if err := store.DeleteByID(ctx, id); err != nil && err != storage.ErrNotFound {
			logging.Errorf("deletion: delete %s: %v", id, err)
		}
	}
}

// findByID queries the store for a single event by id. Storage backends do
// not expose a dedicated get-by-id operation, so this composes Query with an
// ids filter — the same path a REQ with an "ids" filter would take.
func findByID(ctx context.Context, store storage.Store, id string) (*nostr.Event, error) {
	var found *nostr.Event
	err := store.Query(ctx, nostr.Filter{IDs: []string{id}}, func(e *nostr.Event) error {
		if found == nil {
			found = e
		}
		return nil
	})
	return found, err
}
