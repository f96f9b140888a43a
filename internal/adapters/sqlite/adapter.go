// Package sqlite provides SQLite-backed implementations of the tag cache and
// recommendation history store ports.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// Adapter owns the database connection shared by both stores.
type Adapter struct {
	db *sql.DB
}

// TagCacheStore is the ports.TagCacheStore view of an Adapter.
type TagCacheStore struct{ a *Adapter }

// HistoryStore is the ports.HistoryStore view of an Adapter.
type HistoryStore struct{ a *Adapter }

var (
	_ ports.TagCacheStore = TagCacheStore{}
	_ ports.HistoryStore  = HistoryStore{}
)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) TagCache() TagCacheStore { return TagCacheStore{a: a} }

func (a *Adapter) History() HistoryStore { return HistoryStore{a: a} }

func (s TagCacheStore) Load(ctx context.Context) (map[string][]string, error) {
	rows, err := s.a.db.QueryContext(ctx, "SELECT cache_key, tags FROM tag_cache")
	if err != nil {
		return nil, fmt.Errorf("failed to load tag cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string][]string)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan tag cache row: %w", err)
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %q: %w", key, err)
		}
		entries[key] = tags
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag cache: %w", err)
	}
	return entries, nil
}

// Save upserts every entry. Keys absent from entries are left in place.
func (s TagCacheStore) Save(ctx context.Context, entries map[string][]string) error {
	tx, err := s.a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safety net: auto-rollback if we error/panic before commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tag_cache (cache_key, tags, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			tags=excluded.tags,
			updated_at=excluded.updated_at;
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, tags := range entries {
		if tags == nil {
			tags = []string{}
		}
		raw, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for %q: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(raw), now); err != nil {
			return fmt.Errorf("failed to save tags for %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Load returns history ids in insertion order.
func (s HistoryStore) Load(ctx context.Context) (domain.History, error) {
	rows, err := s.a.db.QueryContext(ctx, "SELECT track_id FROM recommendation_history ORDER BY seq ASC")
	if err != nil {
		return domain.History{}, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var h domain.History
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.History{}, fmt.Errorf("failed to scan history row: %w", err)
		}
		h.TrackIDs = append(h.TrackIDs, id)
	}
	if err := rows.Err(); err != nil {
		return domain.History{}, fmt.Errorf("failed to iterate history: %w", err)
	}

	var updated sql.NullTime
	err = s.a.db.QueryRowContext(ctx, "SELECT updated_at FROM store_meta WHERE name = 'history'").Scan(&updated)
	if err != nil && err != sql.ErrNoRows {
		return domain.History{}, fmt.Errorf("failed to load history timestamp: %w", err)
	}
	if updated.Valid {
		h.LastUpdated = updated.Time
	}
	return h, nil
}

// Save appends ids not yet stored and stamps the update time.
func (s HistoryStore) Save(ctx context.Context, h domain.History) error {
	tx, err := s.a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendation_history (track_id) VALUES (?)
		ON CONFLICT(track_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range h.TrackIDs {
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to save history id %s: %w", id, err)
		}
	}

	updated := h.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (name, updated_at) VALUES ('history', ?)
		ON CONFLICT(name) DO UPDATE SET updated_at=excluded.updated_at;
	`, updated.UTC()); err != nil {
		return fmt.Errorf("failed to save history timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tag_cache (
		cache_key TEXT PRIMARY KEY,
		tags TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recommendation_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		track_id TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		name TEXT PRIMARY KEY,
		updated_at DATETIME
	);
	`
	_, err := a.db.Exec(query)
	return err
}
