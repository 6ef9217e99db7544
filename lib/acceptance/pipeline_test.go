package acceptance

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/portwatch/nostrelay/lib/identity"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// memStore is a minimal in-memory storage.Store used to unit-test the
// acceptance pipeline without depending on either concrete backend.
type memStore struct {
	mu     sync.Mutex
	byID   map[string]*nostr.Event
	failOn string // if non-empty, Persist fails for this event id
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*nostr.Event{}}
}

func (m *memStore) Persist(ctx context.Context, e *nostr.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == m.failOn {
		return errors.New("forced failure")
	}
	m.byID[e.ID] = e
	return nil
}

func (m *memStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) Query(ctx context.Context, filter nostr.Filter, emit storage.EmitFunc) error {
	m.mu.Lock()
	events := make([]*nostr.Event, 0, len(m.byID))
	for _, e := range m.byID {
		events = append(events, e)
	}
	m.mu.Unlock()

	for _, e := range events {
		if filter.Matches(e) {
			if err := emit(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memStore) Count(ctx context.Context, filter nostr.Filter) (int64, error) {
	var n int64
	err := m.Query(ctx, filter, func(e *nostr.Event) error { n++; return nil })
	return n, err
}

func (m *memStore) Close() error { return nil }

func signEvent(t *testing.T, id *identity.Identity, e *nostr.Event) {
	t.Helper()
	e.PubKey = id.PubKeyHex()
	e.ID = e.ComputeID()
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	sig, err := schnorr.Sign(id.PrivateKey, idBytes)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return id
}

func TestAcceptRejectsInvalidSignature(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 1, Tags: nostr.Tags{}, Content: "hi"}
	signEvent(t, id, e)
	e.Sig = "00" // corrupt

	out := Accept(context.Background(), newMemStore(), e)
	if out.Accepted {
		t.Fatal("expected rejection for invalid signature")
	}
	if out.Reason != "invalid: signature" {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestAcceptRegularEventPersists(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 1, Tags: nostr.Tags{}, Content: "hi"}
	signEvent(t, id, e)

	store := newMemStore()
	out := Accept(context.Background(), store, e)
	if !out.Accepted || !out.Broadcast {
		t.Fatalf("expected accepted+broadcast, got %+v", out)
	}
	if _, ok := store.byID[e.ID]; !ok {
		t.Fatal("expected event to be persisted")
	}
}

func TestAcceptEphemeralDoesNotPersist(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 20001, Tags: nostr.Tags{}, Content: "hi"}
	signEvent(t, id, e)

	store := newMemStore()
	out := Accept(context.Background(), store, e)
	if !out.Accepted || !out.Broadcast {
		t.Fatalf("expected accepted+broadcast, got %+v", out)
	}
	if len(store.byID) != 0 {
		t.Fatal("ephemeral events must not be persisted")
	}
}

func TestAcceptExpiredEventAcceptedButNotBroadcast(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 1, Tags: nostr.Tags{{"expiration", "1"}}, Content: "hi"}
	signEvent(t, id, e)

	out := Accept(context.Background(), newMemStore(), e)
	if !out.Accepted {
		t.Fatal("expected accepted")
	}
	if out.Broadcast {
		t.Fatal("expected no broadcast for an already-expired event")
	}
}

func TestAcceptContactListRejectsMalformedPTag(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: nostr.KindContacts, Tags: nostr.Tags{{"p", "not-a-hex-pubkey"}}, Content: ""}
	signEvent(t, id, e)

	out := Accept(context.Background(), newMemStore(), e)
	if out.Accepted {
		t.Fatal("expected rejection for malformed contact list p-tag")
	}
}

func TestAcceptRejectsHyphenatedTagAsProtected(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 1, Tags: nostr.Tags{{"-"}}, Content: "protected"}
	signEvent(t, id, e)

	out := Accept(context.Background(), newMemStore(), e)
	if out.Accepted {
		t.Fatal("expected rejection for protected event")
	}
}

func TestAcceptDatabaseErrorRejectsWithoutBroadcast(t *testing.T) {
	id := newIdentity(t)
	e := &nostr.Event{Kind: 1, Tags: nostr.Tags{}, Content: "hi"}
	signEvent(t, id, e)

	store := newMemStore()
	store.failOn = e.ID
	out := Accept(context.Background(), store, e)
	if out.Accepted {
		t.Fatal("expected rejection on storage error")
	}
	if out.Reason != "error: database error" {
		t.Errorf("reason = %q", out.Reason)
	}
	if out.Broadcast {
		t.Fatal("expected no broadcast on storage error")
	}
}

func TestAcceptDeletionAlwaysAcceptedAndBroadcast(t *testing.T) {
	id := newIdentity(t)
	target := &nostr.Event{Kind: 1, Tags: nostr.Tags{}, Content: "to be deleted"}
	signEvent(t, id, target)

	store := newMemStore()
	store.byID[target.ID] = target

	del := &nostr.Event{Kind: nostr.KindDeletion, Tags: nostr.Tags{{"e", target.ID}}, Content: ""}
	signEvent(t, id, del)

	out := Accept(context.Background(), store, del)
	if !out.Accepted || !out.Broadcast {
		t.Fatalf("expected deletion accepted+broadcast, got %+v", out)
	}
	if _, ok := store.byID[target.ID]; ok {
		t.Fatal("expected target event to be deleted")
	}
}
