package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCacheNotFound is returned when no live cache entry exists for a digest.
var ErrCacheNotFound = errors.New("analysis cache entry not found")

// GetAnalysis retrieves the cached analysis result for a batch digest.
// Expired entries are treated as not found. A hit increments the hit count
// and refreshes the last-hit timestamp, so the caller gets touch-on-read
// semantics without a second call.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, digest string) (*AnalysisCacheEntry, error) {
	if digest == "" {
		return nil, errors.New("digest is required")
	}

	now := time.Now().UnixMilli()

	row := s.db.QueryRowContext(ctx, `
		SELECT digest, result_json, model, hit_count, created_at_unix_ms,
		       COALESCE(last_hit_unix_ms, 0), expires_at_unix_ms
		FROM analysis_cache
		WHERE digest = ? AND expires_at_unix_ms > ?
	`, digest, now)

	var entry AnalysisCacheEntry
	err := row.Scan(
		&entry.Digest,
		&entry.ResultJSON,
		&entry.Model,
		&entry.HitCount,
		&entry.CreatedAtUnixMs,
		&entry.LastHitUnixMs,
		&entry.ExpiresAtUnixMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE analysis_cache SET hit_count = hit_count + 1, last_hit_unix_ms = ?
		WHERE digest = ?
	`, now, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to touch cache entry: %w", err)
	}
	entry.HitCount++
	entry.LastHitUnixMs = now

	return &entry, nil
}

// PutAnalysis stores or replaces the cached result for a batch digest.
// A fresh entry starts at hit count 1, counting the analysis that
// produced it, so the first repeat submission reads back 2.
func (s *SQLiteStore) PutAnalysis(ctx context.Context, entry *AnalysisCacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	if entry.Digest == "" {
		return errors.New("digest is required")
	}
	if entry.ResultJSON == "" {
		return errors.New("result_json is required")
	}

	if entry.HitCount == 0 {
		entry.HitCount = 1
	}
	if entry.CreatedAtUnixMs == 0 {
		entry.CreatedAtUnixMs = time.Now().UnixMilli()
	}
	if entry.ExpiresAtUnixMs == 0 {
		entry.ExpiresAtUnixMs = entry.CreatedAtUnixMs + (30 * 24 * time.Hour).Milliseconds()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_cache (
			digest, result_json, model, hit_count,
			created_at_unix_ms, last_hit_unix_ms, expires_at_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Digest,
		entry.ResultJSON,
		entry.Model,
		entry.HitCount,
		entry.CreatedAtUnixMs,
		nullableMs(entry.LastHitUnixMs),
		entry.ExpiresAtUnixMs,
	)
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// PruneExpiredAnalyses removes expired cache entries and returns the count.
func (s *SQLiteStore) PruneExpiredAnalyses(ctx context.Context) (int64, error) {
	now := time.Now().UnixMilli()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM analysis_cache WHERE expires_at_unix_ms < ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	return result.RowsAffected()
}

// AnalysisCacheStats returns cache counters for the status surface.
func (s *SQLiteStore) AnalysisCacheStats(ctx context.Context) (*CacheStats, error) {
	now := time.Now().UnixMilli()

	var stats CacheStats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM analysis_cache
	`)
	if err := row.Scan(&stats.TotalEntries, &stats.TotalHits); err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_cache WHERE expires_at_unix_ms < ?
	`, now)
	if err := row.Scan(&stats.ExpiredEntries); err != nil {
		return nil, fmt.Errorf("failed to get expired count: %w", err)
	}

	return &stats, nil
}

func nullableMs(ms int64) any {
	if ms == 0 {
		return nil
	}
	return ms
}
