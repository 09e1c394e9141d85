package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetAnalysis_HitTouchesEntry(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	entry := &AnalysisCacheEntry{
		Digest:     "digest-1",
		ResultJSON: `{"candidates":[{"title":"Docker Build and Run"}]}`,
		Model:      "gemini-2.0-flash",
	}
	if err := store.PutAnalysis(ctx, entry); err != nil {
		t.Fatalf("PutAnalysis() error = %v", err)
	}

	// Storing counts as the first hit, so the first repeat reads back 2
	got, err := store.GetAnalysis(ctx, "digest-1")
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if got.HitCount != 2 {
		t.Errorf("HitCount after first get = %d, want 2", got.HitCount)
	}
	if got.LastHitUnixMs == 0 {
		t.Error("LastHitUnixMs not set on hit")
	}

	got, err = store.GetAnalysis(ctx, "digest-1")
	if err != nil {
		t.Fatalf("GetAnalysis() second error = %v", err)
	}
	if got.HitCount != 3 {
		t.Errorf("HitCount after second get = %d, want 3", got.HitCount)
	}
	if got.ResultJSON != entry.ResultJSON {
		t.Errorf("ResultJSON = %s", got.ResultJSON)
	}
}

func TestGetAnalysis_Miss(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetAnalysis(context.Background(), "nope")
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("GetAnalysis() error = %v, want ErrCacheNotFound", err)
	}
}

func TestGetAnalysis_Expired(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	entry := &AnalysisCacheEntry{
		Digest:          "old-digest",
		ResultJSON:      `{"candidates":[]}`,
		Model:           "gemini-2.0-flash",
		CreatedAtUnixMs: time.Now().Add(-48 * time.Hour).UnixMilli(),
		ExpiresAtUnixMs: time.Now().Add(-1 * time.Hour).UnixMilli(),
	}
	if err := store.PutAnalysis(ctx, entry); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetAnalysis(ctx, "old-digest"); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expired entry error = %v, want ErrCacheNotFound", err)
	}
}

func TestPruneExpiredAnalyses(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	live := &AnalysisCacheEntry{Digest: "live", ResultJSON: "{}", Model: "m"}
	dead := &AnalysisCacheEntry{
		Digest:          "dead",
		ResultJSON:      "{}",
		Model:           "m",
		CreatedAtUnixMs: time.Now().Add(-48 * time.Hour).UnixMilli(),
		ExpiresAtUnixMs: time.Now().Add(-1 * time.Hour).UnixMilli(),
	}
	if err := store.PutAnalysis(ctx, live); err != nil {
		t.Fatal(err)
	}
	if err := store.PutAnalysis(ctx, dead); err != nil {
		t.Fatal(err)
	}

	pruned, err := store.PruneExpiredAnalyses(ctx)
	if err != nil {
		t.Fatalf("PruneExpiredAnalyses() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	stats, err := store.AnalysisCacheStats(ctx)
	if err != nil {
		t.Fatalf("AnalysisCacheStats() error = %v", err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("TotalEntries = %d, want 1", stats.TotalEntries)
	}
}

func TestInsertUsageRecord_And_Totals(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	recs := []*UsageRecord{
		{UserID: userID, TokensIn: 900, TokensOut: 300, CostUSD: 0.00016, Model: "gemini-2.0-flash", AnalysisID: "a1"},
		{UserID: userID, TokensIn: 1100, TokensOut: 500, CostUSD: 0.00023, Model: "gemini-2.0-flash", AnalysisID: "a2"},
	}
	for _, rec := range recs {
		if err := store.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord() error = %v", err)
		}
	}

	totals, err := store.UsageTotals(ctx, userID)
	if err != nil {
		t.Fatalf("UsageTotals() error = %v", err)
	}
	if totals.Calls != 2 {
		t.Errorf("Calls = %d, want 2", totals.Calls)
	}
	if totals.TokensIn != 2000 {
		t.Errorf("TokensIn = %d, want 2000", totals.TokensIn)
	}
	if totals.TokensOut != 800 {
		t.Errorf("TokensOut = %d, want 800", totals.TokensOut)
	}
}
