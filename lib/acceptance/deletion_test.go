package acceptance

import (
	"context"
	"testing"

	"github.com/portwatch/nostrelay/lib/nostr"
)

func TestProcessDeletionUnauthorizedDeleterSkipped(t *testing.T) {
	author := newIdentity(t)
	attacker := newIdentity(t)

	target := &nostr.Event{Kind: 1, Tags: nostr.Tags{}, Content: "mine"}
	signEvent(t, author, target)

	store := newMemStore()
	store.byID[target.ID] = target

	del := &nostr.Event{Kind: nostr.KindDeletion, Tags: nostr.Tags{{"e", target.ID}}}
	signEvent(t, attacker, del)

	ProcessDeletion(context.Background(), store, del)

	if _, ok := store.byID[target.ID]; !ok {
		t.Fatal("unauthorized deletion must not remove the target event")
	}
}

func TestProcessDeletionGiftWrapAuthorizedByPTag(t *testing.T) {
	wrapper := newIdentity(t)
	recipient := newIdentity(t)

	target := &nostr.Event{Kind: nostr.KindGiftWrap, Tags: nostr.Tags{{"p", recipient.PubKeyHex()}}, Content: "wrapped"}
	signEvent(t, wrapper, target)

	store := newMemStore()
	store.byID[target.ID] = target

	del := &nostr.Event{Kind: nostr.KindDeletion, Tags: nostr.Tags{{"e", target.ID}}}
	signEvent(t, recipient, del)

	ProcessDeletion(context.Background(), store, del)

	if _, ok := store.byID[target.ID]; ok {
		t.Fatal("expected gift-wrap recipient to be authorized to delete it")
	}
}

func TestProcessDeletionMissingTargetSkippedSilently(t *testing.T) {
	author := newIdentity(t)
	store := newMemStore()

	del := &nostr.Event{Kind: nostr.KindDeletion, Tags: nostr.Tags{{"e", "does-not-exist"}}}
	signEvent(t, author, del)

	// Must not panic or error even though the target is absent.
	ProcessDeletion(context.Background(), store, del)
}
