// Package boltstore is the default storage.Store implementation: an
// embedded go.etcd.io/bbolt database, one bucket per event kind plus a
// replaceable-event index. Grounded in the teacher's lib/database/bbolt
// (bucket-per-concern wrapper) and lib/stores/graviton's per-kind-bucket +
// cursor-scan + sort-by-created_at-desc + limit-truncate query shape,
// adapted to bbolt's own cursor API and to this repository's single-
// transaction replacement requirement (spec §4.3's "all persistence
// mutations for a single accepted event occur inside one storage
// transaction").
package boltstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	jsoniter "github.com/json-iterator/go"

	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	kindBucketPrefix = "kind:"
	indexBucket      = "replaceable-index"
	idIndexBucket    = "id-index"
)

// Store is a bbolt-backed storage.Store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a bbolt database at path and prepares its
// fixed top-level buckets.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(indexBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(idIndexBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bbolt buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func kindBucketName(kind int) []byte {
	return []byte(kindBucketPrefix + strconv.Itoa(kind))
}

// replaceableKey builds the (pubkey, kind[, d-tag]) index key.
func replaceableKey(event *nostr.Event) string {
	if event.IsParameterizedReplaceable() {
		return event.PubKey + "|" + strconv.Itoa(event.Kind) + "|" + event.DTag()
	}
	return event.PubKey + "|" + strconv.Itoa(event.Kind)
}

// Persist implements storage.Store.
func (s *Store) Persist(ctx context.Context, event *nostr.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		kindBucket, err := tx.CreateBucketIfNotExists(kindBucketName(event.Kind))
		if err != nil {
			return err
		}
		idIndex := tx.Bucket([]byte(idIndexBucket))

		if event.IsReplaceable() || event.IsParameterizedReplaceable() {
			return persistReplaceable(tx, kindBucket, idIndex, event, data)
		}

		// Regular: duplicate id is a no-op success (spec §4.3 step 9).
		if existing := kindBucket.Get([]byte(event.ID)); existing != nil {
			return nil
		}
		if err := kindBucket.Put([]byte(event.ID), data); err != nil {
			return err
		}
		return idIndex.Put([]byte(event.ID), []byte(strconv.Itoa(event.Kind)))
	})
}

func persistReplaceable(tx *bbolt.Tx, kindBucket, idIndex *bbolt.Bucket, event *nostr.Event, data []byte) error {
	index, err := tx.CreateBucketIfNotExists([]byte(indexBucket))
	if err != nil {
		return err
	}

	key := []byte(replaceableKey(event))
	if winnerID := index.Get(key); winnerID != nil {
		existingData := kindBucket.Get(winnerID)
		if existingData != nil {
			var existing nostr.Event
			if err := json.Unmarshal(existingData, &existing); err == nil {
				if !dominates(event, &existing) {
					return nil // incoming does not win; no-op success
				}
				if err := kindBucket.Delete(winnerID); err != nil {
					return err
				}
				if err := idIndex.Delete(winnerID); err != nil {
					return err
				}
			}
		}
	}

	if err := kindBucket.Put([]byte(event.ID), data); err != nil {
		return err
	}
	if err := idIndex.Put([]byte(event.ID), []byte(strconv.Itoa(event.Kind))); err != nil {
		return err
	}
	return index.Put(key, []byte(event.ID))
}

// dominates reports whether incoming should replace existing: greater
// created_at, or equal created_at with lexicographically smaller id as
// tiebreak (spec §3 "newer created_at wins, with lexicographically smaller
// id as tiebreak").
func dominates(incoming, existing *nostr.Event) bool {
	if incoming.CreatedAt != existing.CreatedAt {
		return incoming.CreatedAt > existing.CreatedAt
	}
	return incoming.ID < existing.ID
}

// DeleteByID implements storage.Store.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idIndex := tx.Bucket([]byte(idIndexBucket))
		kindBytes := idIndex.Get([]byte(id))
		if kindBytes == nil {
			return storage.ErrNotFound
		}
		kind, err := strconv.Atoi(string(kindBytes))
		if err != nil {
			return fmt.Errorf("corrupt id index for %s: %w", id, err)
		}

		kindBucket := tx.Bucket(kindBucketName(kind))
		if kindBucket != nil {
			if err := kindBucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return idIndex.Delete([]byte(id))
	})
}

// Query implements storage.Store.
func (s *Store) Query(ctx context.Context, filter nostr.Filter, emit storage.EmitFunc) error {
	events, err := s.scan(filter)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	limit := filter.Limit
	if !filter.HasLimit || limit <= 0 {
		limit = 500
	}

	count := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if expiresAt, ok := event.Expiration(); ok && expiresAt <= now {
			continue
		}
		if count >= limit {
			break
		}
		if err := emit(event); err != nil {
			return err
		}
		count++
	}
	return nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context, filter nostr.Filter) (int64, error) {
	events, err := s.scan(filter)
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	var n int64
	for _, event := range events {
		if expiresAt, ok := event.Expiration(); ok && expiresAt <= now {
			continue
		}
		n++
	}
	return n, nil
}

// scan gathers every non-ephemeral event in the kind buckets named by
// filter.Kinds (or every kind bucket if unset), runs the in-memory filter
// match, and returns them newest-first.
func (s *Store) scan(filter nostr.Filter) ([]*nostr.Event, error) {
	var matched []*nostr.Event

	err := s.db.View(func(tx *bbolt.Tx) error {
		visit := func(name []byte, bucket *bbolt.Bucket) error {
			return bucket.ForEach(func(k, v []byte) error {
				var event nostr.Event
				if err := json.Unmarshal(v, &event); err != nil {
					return nil // skip corrupt entries rather than fail the whole scan
				}
				if filter.Matches(&event) {
					matched = append(matched, &event)
				}
				return nil
			})
		}

		if len(filter.Kinds) > 0 {
			for _, kind := range filter.Kinds {
				if nostr.IsEphemeral(kind) {
					continue
				}
				bucket := tx.Bucket(kindBucketName(kind))
				if bucket == nil {
					continue
				}
				if err := visit(kindBucketName(kind), bucket); err != nil {
					return err
				}
			}
			return nil
		}

		return tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
			if !strings.HasPrefix(string(name), kindBucketPrefix) {
				return nil
			}
			return visit(name, bucket)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
