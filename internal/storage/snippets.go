package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSnippetNotFound is returned when a snippet lookup matches nothing.
var ErrSnippetNotFound = errors.New("snippet not found")

// InsertRawCommands stores captured commands as raw-marker snippet rows.
// Commands the owner already has captured (same content hash, still raw)
// are skipped. Returns the number of rows inserted.
func (s *SQLiteStore) InsertRawCommands(ctx context.Context, userID int64, commands []string) (int, error) {
	if userID <= 0 {
		return 0, errors.New("user id is required")
	}

	now := time.Now().UnixMilli()
	inserted := 0
	seen := make(map[string]bool, len(commands))

	for _, cmd := range commands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		hash := HashCommand(cmd)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		res, err := s.db.ExecContext(ctx, `
			INSERT INTO snippets (user_id, title, is_raw, command_hash, created_at_unix_ms, updated_at_unix_ms)
			SELECT ?, ?, 1, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM snippets WHERE user_id = ? AND command_hash = ? AND is_raw = 1
			)
		`, userID, cmd, hash, now, now, userID, hash)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert raw command: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	return inserted, nil
}

// FindUnprocessedRawCommands returns raw captures that have not yet been
// submitted for analysis, oldest first, grouped by owner in the result
// ordering so the worker's per-owner batching stays contiguous.
func (s *SQLiteStore) FindUnprocessedRawCommands(ctx context.Context, limit int) ([]RawCommand, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, command_hash, created_at_unix_ms, updated_at_unix_ms
		FROM snippets s
		WHERE is_raw = 1
		  AND NOT EXISTS (
			SELECT 1 FROM processed_commands p
			WHERE p.user_id = s.user_id AND p.command_hash = s.command_hash
		  )
		ORDER BY user_id, created_at_unix_ms, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed commands: %w", err)
	}
	defer rows.Close()

	var cmds []RawCommand
	for rows.Next() {
		var c RawCommand
		if err := rows.Scan(&c.ID, &c.UserID, &c.Command, &c.CommandHash, &c.CreatedAtUnixMs, &c.UpdatedAtUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan raw command: %w", err)
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// CountUnprocessedRawCommands returns the backlog size across all owners.
func (s *SQLiteStore) CountUnprocessedRawCommands(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM snippets s
		WHERE is_raw = 1
		  AND NOT EXISTS (
			SELECT 1 FROM processed_commands p
			WHERE p.user_id = s.user_id AND p.command_hash = s.command_hash
		  )
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unprocessed commands: %w", err)
	}
	return n, nil
}

// MarkCommandsProcessed records that the given command hashes were
// submitted for analysis. Idempotent.
func (s *SQLiteStore) MarkCommandsProcessed(ctx context.Context, userID int64, hashes []string) error {
	now := time.Now().UnixMilli()
	for _, h := range hashes {
		if h == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO processed_commands (user_id, command_hash, processed_at_unix_ms)
			VALUES (?, ?, ?)
		`, userID, h, now)
		if err != nil {
			return fmt.Errorf("failed to mark command processed: %w", err)
		}
	}
	return nil
}

// DeleteRawCommand deletes a single raw capture by id.
func (s *SQLiteStore) DeleteRawCommand(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snippets WHERE id = ? AND is_raw = 1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete raw command: %w", err)
	}
	return nil
}

// DeleteRawCommandsByText deletes the owner's raw captures whose command
// text matches exactly. Used after enhancement so the user is not shown a
// raw/enhanced duplicate pair. Returns the number of rows deleted.
func (s *SQLiteStore) DeleteRawCommandsByText(ctx context.Context, userID int64, command string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snippets WHERE user_id = ? AND is_raw = 1 AND title = ?
	`, userID, command)
	if err != nil {
		return 0, fmt.Errorf("failed to delete raw commands: %w", err)
	}
	return res.RowsAffected()
}

// InsertEnhancedSnippet persists a validated candidate with its categories,
// fragments, and audit link in one transaction.
func (s *SQLiteStore) InsertEnhancedSnippet(ctx context.Context, userID int64, snip *NewEnhancedSnippet) (int64, error) {
	if snip == nil {
		return 0, errors.New("snippet is required")
	}
	if snip.Title == "" {
		return 0, errors.New("snippet title is required")
	}
	if len(snip.Fragments) == 0 {
		return 0, errors.New("snippet must have at least one fragment")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO snippets (user_id, title, description, is_public, locked, is_raw, created_at_unix_ms, updated_at_unix_ms)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, userID, snip.Title, snip.Description, boolToInt(snip.IsPublic), boolToInt(snip.Locked), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snippet: %w", err)
	}
	snippetID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snippet id: %w", err)
	}

	for _, cat := range snip.Categories {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO snippet_categories (snippet_id, name) VALUES (?, ?)
		`, snippetID, cat)
		if err != nil {
			return 0, fmt.Errorf("failed to insert category: %w", err)
		}
	}

	for _, frag := range snip.Fragments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fragments (snippet_id, file_name, code, language, position)
			VALUES (?, ?, ?, ?, ?)
		`, snippetID, frag.FileName, frag.Code, frag.Language, frag.Position)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fragment: %w", err)
		}
	}

	sourceJSON, err := json.Marshal(snip.SourceCommands)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal source commands: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO enhancement_audit (snippet_id, analysis_id, source_commands_json, created_at_unix_ms)
		VALUES (?, ?, ?, ?)
	`, snippetID, snip.AnalysisID, string(sourceJSON), now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snippet: %w", err)
	}
	return snippetID, nil
}

// FindSnippetByTitle returns the owner's enhanced (non-raw) snippet with the
// given title, or ErrSnippetNotFound. This is the duplicate-title guard.
func (s *SQLiteStore) FindSnippetByTitle(ctx context.Context, userID int64, title string) (*Snippet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, is_public, locked, is_raw, created_at_unix_ms, updated_at_unix_ms
		FROM snippets
		WHERE user_id = ? AND title = ? AND is_raw = 0
		ORDER BY id
		LIMIT 1
	`, userID, title)

	snip, err := s.scanSnippet(ctx, row)
	if err != nil {
		return nil, err
	}
	return snip, nil
}

// GetSnippet returns a snippet by id with its categories and fragments.
func (s *SQLiteStore) GetSnippet(ctx context.Context, id int64) (*Snippet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, is_public, locked, is_raw, created_at_unix_ms, updated_at_unix_ms
		FROM snippets
		WHERE id = ?
	`, id)

	return s.scanSnippet(ctx, row)
}

func (s *SQLiteStore) scanSnippet(ctx context.Context, row *sql.Row) (*Snippet, error) {
	var snip Snippet
	var isPublic, locked, isRaw int
	err := row.Scan(&snip.ID, &snip.UserID, &snip.Title, &snip.Description, &isPublic, &locked, &isRaw, &snip.CreatedAtUnixMs, &snip.UpdatedAtUnixMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnippetNotFound
		}
		return nil, fmt.Errorf("failed to scan snippet: %w", err)
	}
	snip.IsPublic = isPublic != 0
	snip.Locked = locked != 0
	snip.IsRaw = isRaw != 0

	catRows, err := s.db.QueryContext(ctx, `
		SELECT name FROM snippet_categories WHERE snippet_id = ? ORDER BY name
	`, snip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var name string
		if err := catRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		snip.Categories = append(snip.Categories, name)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	fragRows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, code, language, position
		FROM fragments WHERE snippet_id = ? ORDER BY position
	`, snip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer fragRows.Close()
	for fragRows.Next() {
		var f Fragment
		if err := fragRows.Scan(&f.ID, &f.FileName, &f.Code, &f.Language, &f.Position); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		snip.Fragments = append(snip.Fragments, f)
	}
	if err := fragRows.Err(); err != nil {
		return nil, err
	}

	return &snip, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
