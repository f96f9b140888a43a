// Package jsonstore persists the tag cache and the recommendation history as
// JSON documents on local disk.
package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

const (
	DefaultTagCacheFile = "tag_cache.json"
	DefaultHistoryFile  = "recommendation_history.json"
)

// TagCacheStore keeps the tag cache in a single JSON object keyed by
// domain.TagKey.
type TagCacheStore struct {
	path   string
	logger *zap.Logger
}

// HistoryStore keeps the recommendation history in a single JSON document.
type HistoryStore struct {
	path   string
	logger *zap.Logger
}

var (
	_ ports.TagCacheStore = (*TagCacheStore)(nil)
	_ ports.HistoryStore  = (*HistoryStore)(nil)
)

func NewTagCacheStore(path string, logger *zap.Logger) *TagCacheStore {
	if path == "" {
		path = DefaultTagCacheFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagCacheStore{path: path, logger: logger}
}

func NewHistoryStore(path string, logger *zap.Logger) *HistoryStore {
	if path == "" {
		path = DefaultHistoryFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryStore{path: path, logger: logger}
}

// Load returns the stored entries. A missing or unreadable document yields an
// empty cache.
func (s *TagCacheStore) Load(ctx context.Context) (map[string][]string, error) {
	entries := make(map[string][]string)
	if err := readJSON(s.path, &entries); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("jsonstore: tag cache unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return make(map[string][]string), nil
	}
	return entries, nil
}

func (s *TagCacheStore) Save(ctx context.Context, entries map[string][]string) error {
	if entries == nil {
		entries = map[string][]string{}
	}
	return writeJSON(s.path, entries)
}

// Load returns the stored history, or an empty one when the document is
// missing or corrupt.
func (s *HistoryStore) Load(ctx context.Context) (domain.History, error) {
	var doc historyDocument
	if err := readJSON(s.path, &doc); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("jsonstore: history unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return domain.History{}, nil
	}

	h := domain.History{TrackIDs: doc.Tracks}
	updated, ok := parseTimestamp(doc.LastUpdated)
	if !ok {
		s.logger.Warn("jsonstore: history timestamp unreadable, keeping ids",
			zap.String("path", s.path), zap.ByteString("last_updated", doc.LastUpdated))
	}
	h.LastUpdated = updated
	return h, nil
}

// historyDocument keeps last_updated raw so a timestamp in an unexpected
// format never costs the ids.
type historyDocument struct {
	Tracks      []string        `json:"tracks"`
	LastUpdated json.RawMessage `json:"last_updated"`
}

// timestampLayouts are tried in order. Zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339, zone-less ISO 8601, null or absent.
// ok is false only when a value was present but matched no layout.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *HistoryStore) Save(ctx context.Context, h domain.History) error {
	if h.TrackIDs == nil {
		h.TrackIDs = []string{}
	}
	return writeJSON(s.path, h)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonstore: decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically: the document is written to a temp file
// in the same directory and renamed over the target.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonstore: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("jsonstore: rename %s: %w", path, err)
	}
	return nil
}
