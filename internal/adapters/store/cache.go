package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/adapters/cache"
	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap"
)

type cacheRow struct {
	Key       string         `db:"cache_key"`
	LabelIDs  sql.NullString `db:"label_ids"`
	ExpiresAt int64          `db:"expires_at"`
}

// Get retrieves a live classification cache entry
func (s *SQLStore) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var row cacheRow
	query := s.db.Rebind(`
		SELECT cache_key, label_ids, expires_at FROM classification_cache
		WHERE cache_key = ? AND (expires_at = 0 OR expires_at > ?)`)

	if err := s.db.GetContext(ctx, &row, query, key, s.now().Unix()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry := &core.CacheEntry{Key: row.Key, ExpiresAt: row.ExpiresAt}
	if row.LabelIDs.Valid && row.LabelIDs.String != "" {
		if err := json.Unmarshal([]byte(row.LabelIDs.String), &entry.LabelIDs); err != nil {
			s.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
			return nil, cache.ErrNotFound
		}
	}
	return entry, nil
}

// Set stores a classification cache entry, replacing any previous one
func (s *SQLStore) Set(ctx context.Context, entry *core.CacheEntry) error {
	labels, err := json.Marshal(entry.LabelIDs)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `INSERT INTO classification_cache (cache_key, label_ids, expires_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE label_ids = VALUES(label_ids), expires_at = VALUES(expires_at)`
	case DialectPostgres:
		query = `INSERT INTO classification_cache (cache_key, label_ids, expires_at) VALUES (?, ?, ?)
			ON CONFLICT (cache_key) DO UPDATE SET label_ids = EXCLUDED.label_ids, expires_at = EXCLUDED.expires_at`
	default:
		query = `INSERT OR REPLACE INTO classification_cache (cache_key, label_ids, expires_at) VALUES (?, ?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), entry.Key, string(labels), entry.ExpiresAt); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes a classification cache entry
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM classification_cache WHERE cache_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired classification cache entries
func (s *SQLStore) Cleanup(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM classification_cache WHERE expires_at > 0 AND expires_at <= ?`),
		s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", n))
	}
	return nil
}
