package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAPIKeyNotFound is returned when an API key does not resolve to a user.
var ErrAPIKeyNotFound = errors.New("api key not found")

// EnsureUser returns the id of the named user, creating the row if needed.
func (s *SQLiteStore) EnsureUser(ctx context.Context, username string) (int64, error) {
	if username == "" {
		return 0, errors.New("username is required")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE username = ?
	`, username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, created_at_unix_ms) VALUES (?, ?)
	`, username, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// CreateAPIKey mints a new ingest API key for the user and returns it.
// Only a hash of the key is stored; the plaintext is shown once.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, userID int64, label string) (string, error) {
	key := "ss_" + uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, user_id, label, created_at_unix_ms)
		VALUES (?, ?, ?, ?)
	`, hashKey(key), userID, label, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create api key: %w", err)
	}

	return key, nil
}

// ResolveAPIKey returns the owning user id for the given plaintext key.
// Returns ErrAPIKeyNotFound for unknown keys.
func (s *SQLiteStore) ResolveAPIKey(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, ErrAPIKeyNotFound
	}

	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM api_keys WHERE key_hash = ?
	`, hashKey(key)).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAPIKeyNotFound
		}
		return 0, fmt.Errorf("failed to resolve api key: %w", err)
	}

	// Best-effort usage timestamp
	_, _ = s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_unix_ms = ? WHERE key_hash = ?
	`, time.Now().UnixMilli(), hashKey(key))

	return userID, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashCommand returns the stable content hash of a single command used by
// the processed-commands guard.
func HashCommand(command string) string {
	sum := sha256.Sum256([]byte(command))
	return hex.EncodeToString(sum[:])
}
