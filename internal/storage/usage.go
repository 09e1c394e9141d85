package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InsertUsageRecord appends one provider-call record to the usage ledger.
// The ledger is append-only; rows are never updated or deleted.
func (s *SQLiteStore) InsertUsageRecord(ctx context.Context, rec *UsageRecord) error {
	if rec == nil {
		return errors.New("usage record cannot be nil")
	}
	if rec.UserID <= 0 {
		return errors.New("user id is required")
	}
	if rec.Model == "" {
		return errors.New("model is required")
	}

	if rec.CreatedAtUnixMs == 0 {
		rec.CreatedAtUnixMs = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, tokens_in, tokens_out, cost_usd, model, analysis_id, created_at_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.UserID,
		rec.TokensIn,
		rec.TokensOut,
		rec.CostUSD,
		rec.Model,
		rec.AnalysisID,
		rec.CreatedAtUnixMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// UsageTotals aggregates the ledger for one owner.
func (s *SQLiteStore) UsageTotals(ctx context.Context, userID int64) (*UsageTotals, error) {
	var t UsageTotals
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_records
		WHERE user_id = ?
	`, userID)
	if err := row.Scan(&t.Calls, &t.TokensIn, &t.TokensOut, &t.CostUSD); err != nil {
		return nil, fmt.Errorf("failed to get usage totals: %w", err)
	}
	return &t, nil
}
