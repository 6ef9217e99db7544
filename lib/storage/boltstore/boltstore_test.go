package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func queryIDs(t *testing.T, s *Store, filter nostr.Filter) []string {
	t.Helper()
	var ids []string
	err := s.Query(context.Background(), filter, func(e *nostr.Event) error {
		ids = append(ids, e.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestPersistRegularDuplicateIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, &nostr.Event{ID: "dup1", Kind: 1, Content: "first"}))
	require.NoError(t, s.Persist(ctx, &nostr.Event{ID: "dup1", Kind: 1, Content: "second"}))

	var got *nostr.Event
	err := s.Query(ctx, nostr.Filter{IDs: []string{"dup1"}}, func(e *nostr.Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Content)
}

func TestPersistReplaceableNewerWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := &nostr.Event{ID: "a", PubKey: "pub1", Kind: 0, CreatedAt: 100}
	newer := &nostr.Event{ID: "b", PubKey: "pub1", Kind: 0, CreatedAt: 200}

	require.NoError(t, s.Persist(ctx, older))
	require.NoError(t, s.Persist(ctx, newer))

	ids := queryIDs(t, s, nostr.Filter{Kinds: []int{0}})
	assert.Equal(t, []string{"b"}, ids)
}

func TestPersistReplaceableOlderDoesNotOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	newer := &nostr.Event{ID: "b", PubKey: "pub1", Kind: 0, CreatedAt: 200}
	older := &nostr.Event{ID: "a", PubKey: "pub1", Kind: 0, CreatedAt: 100}

	require.NoError(t, s.Persist(ctx, newer))
	require.NoError(t, s.Persist(ctx, older))

	ids := queryIDs(t, s, nostr.Filter{Kinds: []int{0}})
	assert.Equal(t, []string{"b"}, ids, "an older replaceable event must not overwrite a newer one")
}

func TestPersistReplaceableTiebreakSmallerIDWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &nostr.Event{ID: "zzz", PubKey: "pub1", Kind: 0, CreatedAt: 100}
	second := &nostr.Event{ID: "aaa", PubKey: "pub1", Kind: 0, CreatedAt: 100}

	require.NoError(t, s.Persist(ctx, first))
	require.NoError(t, s.Persist(ctx, second))

	ids := queryIDs(t, s, nostr.Filter{Kinds: []int{0}})
	assert.Equal(t, []string{"aaa"}, ids, "lexicographically smaller id should win equal-created_at tiebreak")
}

func TestPersistParameterizedReplaceableKeyedByDTag(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &nostr.Event{ID: "a", PubKey: "pub1", Kind: 30023, CreatedAt: 100, Tags: nostr.Tags{{"d", "x"}}}
	b := &nostr.Event{ID: "b", PubKey: "pub1", Kind: 30023, CreatedAt: 100, Tags: nostr.Tags{{"d", "y"}}}

	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Persist(ctx, b))

	ids := queryIDs(t, s, nostr.Filter{Kinds: []int{30023}})
	assert.ElementsMatch(t, []string{"a", "b"}, ids, "distinct d-tags should not replace each other")
}

func TestDeleteByIDIdempotentAndNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, &nostr.Event{ID: "del1", Kind: 1}))
	require.NoError(t, s.DeleteByID(ctx, "del1"))
	assert.ErrorIs(t, s.DeleteByID(ctx, "del1"), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteByID(ctx, "never-existed"), storage.ErrNotFound)
}

func TestQueryOrderingAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, createdAt := range []int64{100, 300, 200} {
		require.NoError(t, s.Persist(ctx, &nostr.Event{ID: string(rune('a' + i)), Kind: 1, CreatedAt: createdAt}))
	}

	ids := queryIDs(t, s, nostr.Filter{Kinds: []int{1}, HasLimit: true, Limit: 2})
	// created_at 300 ("b") then 200 ("c"): descending order, 100 ("a") excluded by limit.
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestCountIgnoresLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Persist(ctx, &nostr.Event{ID: string(rune('a' + i)), Kind: 1, CreatedAt: int64(i)}))
	}

	n, err := s.Count(ctx, nostr.Filter{Kinds: []int{1}, HasLimit: true, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}
