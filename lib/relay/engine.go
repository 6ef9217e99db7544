package relay

import (
	"context"

	"github.com/portwatch/nostrelay/lib/acceptance"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// Engine ties the storage collaborator, the acceptance pipeline, and the
// client registry together into the core's three operations: publish,
// subscribe (via Client.Subscribe + NewSubscription), and count.
type Engine struct {
	store    storage.Store
	registry *Registry
}

// NewEngine builds an Engine over the given storage collaborator.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store, registry: NewRegistry()}
}

// Store exposes the storage collaborator, e.g. for subscription backfill.
func (e *Engine) Store() storage.Store { return e.store }

// Registry exposes the client registry, e.g. for transport-layer add/remove.
func (e *Engine) Registry() *Registry { return e.registry }

// Publish runs event through the acceptance pipeline and, if accepted for
// broadcast, fans it out to every matching subscription (spec §4.3 step 10).
func (e *Engine) Publish(ctx context.Context, event *nostr.Event) (accepted bool, reason string) {
	outcome := acceptance.Accept(ctx, e.store, event)
	if outcome.Broadcast {
		e.registry.Broadcast(event)
	}
	return outcome.Accepted, outcome.Reason
}

// Count sums the storage collaborator's count across filters (spec §4.8,
// §9 Open Question 3: duplicates across overlapping filters overcount, by
// design, matching observed relay behavior).
func (e *Engine) Count(ctx context.Context, filters nostr.Filters) (int64, error) {
	var total int64
	for _, f := range filters {
		n, err := e.store.Count(ctx, f)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
