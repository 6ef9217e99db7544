// Package acceptance implements the event-acceptance pipeline of spec §4.3:
// a single ordered policy state machine replacing the teacher's per-kind
// handler registry (lib/handlers/nostr/universal + kind0..kind36810).
// Grounded in universal.go's replaceable/addressable delete-then-insert
// pattern, generalized into one uniform pipeline and pushed down into the
// storage collaborator so replacement stays inside one transaction.
package acceptance

import (
	"context"
	"regexp"
	"time"

	"github.com/portwatch/nostrelay/lib/crypto"
	"github.com/portwatch/nostrelay/lib/logging"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// Outcome is the result of running an event through the pipeline.
type Outcome struct {
	Accepted  bool
	Reason    string
	Broadcast bool
}

var hexPubkey = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Accept runs event through the ordered policy steps of spec §4.3.
func Accept(ctx context.Context, store storage.Store, event *nostr.Event) Outcome {
	if !crypto.Verify(event) {
		return Outcome{Accepted: false, Reason: "invalid: signature"}
	}

	if event.IsDeletion() {
		ProcessDeletion(ctx, store, event)
		return Outcome{Accepted: true, Reason: "", Broadcast: true}
	}

	if hasHyphenatedTag(event) {
		return Outcome{Accepted: false, Reason: "auth-required: this event may only be published by its author"}
	}

	if event.IsEphemeral() {
		return Outcome{Accepted: true, Reason: "", Broadcast: true}
	}

	if expiresAt, ok := event.Expiration(); ok && expiresAt <= time.Now().Unix() {
		return Outcome{Accepted: true, Reason: "", Broadcast: false}
	}

	if event.Kind == nostr.KindContacts {
		for _, p := range event.PTags() {
			if !hexPubkey.MatchString(p) {
				return Outcome{Accepted: false, Reason: "invalid: contact list p-tag has invalid pubkey format"}
			}
		}
	}

	if err := store.Persist(ctx, event); err != nil {
		logging.Errorf("persist event %s: %v", event.ID, err)
		return Outcome{Accepted: false, Reason: "error: database error"}
	}

	return Outcome{Accepted: true, Reason: "", Broadcast: true}
}

func hasHyphenatedTag(event *nostr.Event) bool {
	for _, t := range event.Tags {
		if len(t) == 0 {
			continue
		}
		for i := 0; i < len(t[0]); i++ {
			if t[0][i] == '-' {
				return true
			}
		}
	}
	return false
}
