// Package sqlitestore is the relational alternative storage.Store
// implementation, for deployments that already run relational tooling
// (SPEC_FULL.md §4.11). Grounded directly in the teacher's
// lib/stores/statistics/gorm/sqlite connection setup: the same WAL /
// busy-timeout / txlock / connection-pool tuning, applied here to an
// "events" table instead of a statistics schema.
package sqlitestore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// Store is a GORM/SQLite-backed storage.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a SQLite database under dataDir.
func Open(dataDir string) (*Store, error) {
	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=30000&_txlock=immediate&_synchronous=normal&_mutex=no&_locking_mode=normal&cache=shared",
		filepath.Join(dataDir, "events.db"),
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		PrepareStmt:          true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetConnMaxLifetime(60 * time.Minute)
	sqlDB.SetConnMaxIdleTime(20 * time.Minute)

	db.Exec("PRAGMA journal_size_limit = 67110000")
	db.Exec("PRAGMA mmap_size = 134217728")
	db.Exec("PRAGMA cache_size = -32000")
	db.Exec("PRAGMA temp_store = MEMORY")

	if err := db.AutoMigrate(&eventRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Persist implements storage.Store.
func (s *Store) Persist(ctx context.Context, event *nostr.Event) error {
	row, err := rowFromEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if event.IsReplaceable() || event.IsParameterizedReplaceable() {
			return persistReplaceable(tx, event, row)
		}

		var existing eventRow
		err := tx.Where("id = ?", event.ID).Take(&existing).Error
		if err == nil {
			return nil // duplicate id: no-op success
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(row).Error
	})
}

func persistReplaceable(tx *gorm.DB, event *nostr.Event, row *eventRow) error {
	query := tx.Where("pub_key = ? AND kind = ?", event.PubKey, event.Kind)
	if event.IsParameterizedReplaceable() {
		query = query.Where("d_tag = ?", event.DTag())
	}

	var existing eventRow
	err := query.Order("created_at DESC, id ASC").Take(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return tx.Create(row).Error
	case err != nil:
		return err
	}

	if !dominates(event, &existing) {
		return nil
	}
	if err := tx.Where("id = ?", existing.ID).Delete(&eventRow{}).Error; err != nil {
		return err
	}
	return tx.Create(row).Error
}

func dominates(incoming *nostr.Event, existing *eventRow) bool {
	if incoming.CreatedAt != existing.CreatedAt {
		return incoming.CreatedAt > existing.CreatedAt
	}
	return incoming.ID < existing.ID
}

// DeleteByID implements storage.Store.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&eventRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Query implements storage.Store.
func (s *Store) Query(ctx context.Context, filter nostr.Filter, emit storage.EmitFunc) error {
	limit := filter.Limit
	if !filter.HasLimit || limit <= 0 {
		limit = 500
	}

	rows, err := s.queryRows(ctx, filter)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	count := 0
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			continue
		}
		if !filter.Matches(event) {
			continue
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
	rows, err := s.queryRows(ctx, filter)
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	var n int64
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			continue
		}
		if !filter.Matches(event) {
			continue
		}
		if expiresAt, ok := event.Expiration(); ok && expiresAt <= now {
			continue
		}
		n++
	}
	return n, nil
}

// queryRows applies the SQL-expressible narrowing (kind, time range) and
// leaves author/id/tag prefix matching to the in-memory filter oracle,
// mirroring spec §4.4's "the core may filter a second time in memory when
// the storage backend's query is an over-approximation." filter.Authors,
// like filter.IDs, is a prefix-match set (spec §3), not an exact-match set,
// so it cannot be pushed into an SQL "IN" clause without dropping rows a
// true prefix would have matched — it is left entirely to Matches.
func (s *Store) queryRows(ctx context.Context, filter nostr.Filter) ([]eventRow, error) {
	query := s.db.WithContext(ctx).Model(&eventRow{})

	if len(filter.Kinds) > 0 {
		nonEphemeral := make([]int, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			if !nostr.IsEphemeral(k) {
				nonEphemeral = append(nonEphemeral, k)
			}
		}
		if len(nonEphemeral) == 0 {
			return nil, nil
		}
		query = query.Where("kind IN ?", nonEphemeral)
	} else {
		query = query.Where("kind < ? OR kind >= ?", 20000, 30000)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", *filter.Until)
	}

	query = query.Order("created_at DESC, id ASC")

	var rows []eventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return rows, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
