package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seanstash/stashd/internal/provider"
	"github.com/seanstash/stashd/internal/storage"
)

// Options controls a single analysis call.
type Options struct {
	MaxCandidates int
	GroupSimilar  bool
}

// Result is the outcome of one batch analysis. Success means at least one
// candidate passed validation; partial success is success.
type Result struct {
	Success          bool
	Candidates       []Candidate
	ValidationErrors []ValidationError
	TokensIn         int64
	TokensOut        int64
	Cost             float64
	CacheHit         bool
	AnalysisID       string
	RawResponse      string
}

// cachedResult is the JSON form stored in the analysis cache.
type cachedResult struct {
	Candidates []Candidate `json:"candidates"`
	AnalysisID string      `json:"analysis_id"`
}

// Analyzer converts command batches into validated candidates, consulting
// the cache before the provider and recording every real call in the
// usage ledger.
type Analyzer struct {
	store       storage.Store
	provider    provider.Provider
	logger      *slog.Logger
	model       string
	maxTokens   int
	temperature float64
	cacheTTL    time.Duration
}

// AnalyzerConfig wires an Analyzer.
type AnalyzerConfig struct {
	Store       storage.Store
	Provider    provider.Provider
	Logger      *slog.Logger
	Model       string
	MaxTokens   int
	Temperature float64
	CacheTTL    time.Duration
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		store:       cfg.Store,
		provider:    cfg.Provider,
		logger:      logger,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		cacheTTL:    cfg.CacheTTL,
	}
}

// AnalyzeCommands analyzes one owner's batch. A cache hit short-circuits
// the provider entirely. Provider errors fail fast; retrying is the
// caller's business at its next pass.
func (a *Analyzer) AnalyzeCommands(ctx context.Context, ownerID int64, commands []string, opts Options) (*Result, error) {
	if len(commands) == 0 {
		return nil, errors.New("no commands to analyze")
	}

	digest := BatchDigest(commands)

	if entry, err := a.store.GetAnalysis(ctx, digest); err == nil {
		var cached cachedResult
		if err := json.Unmarshal([]byte(entry.ResultJSON), &cached); err == nil {
			a.logger.Debug("analysis cache hit",
				"digest", digest, "hit_count", entry.HitCount)
			return &Result{
				Success:    true,
				Candidates: cached.Candidates,
				CacheHit:   true,
				AnalysisID: cached.AnalysisID,
			}, nil
		}
		a.logger.Warn("discarding undecodable cache entry", "digest", digest, "error", err)
	} else if !errors.Is(err, storage.ErrCacheNotFound) {
		a.logger.Warn("cache lookup failed", "digest", digest, "error", err)
	}

	prompt := NewPromptBuilder(opts.MaxCandidates, opts.GroupSimilar).Build(commands)

	resp, err := a.provider.Generate(ctx, &provider.GenerateRequest{
		Model:       a.model,
		Prompt:      prompt,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}

	analysisID := uuid.NewString()
	cost := provider.EstimateCost(a.model, resp.TokensIn, resp.TokensOut)

	if err := a.store.InsertUsageRecord(ctx, &storage.UsageRecord{
		UserID:     ownerID,
		TokensIn:   resp.TokensIn,
		TokensOut:  resp.TokensOut,
		CostUSD:    cost,
		Model:      a.model,
		AnalysisID: analysisID,
	}); err != nil {
		a.logger.Warn("failed to record usage", "analysis_id", analysisID, "error", err)
	}

	result := &Result{
		TokensIn:    resp.TokensIn,
		TokensOut:   resp.TokensOut,
		Cost:        cost,
		AnalysisID:  analysisID,
		RawResponse: resp.Text,
	}

	doc, err := ExtractJSON(resp.Text)
	if err != nil {
		return result, fmt.Errorf("response extraction failed: %w", err)
	}

	raw, err := parseCandidates(doc)
	if err != nil {
		return result, fmt.Errorf("failed to decode candidates: %w", err)
	}

	result.Candidates, result.ValidationErrors = ValidateCandidates(raw, opts.MaxCandidates)
	result.Success = len(result.Candidates) > 0

	if result.Success {
		a.cacheResult(ctx, digest, result)
	}

	return result, nil
}

// cacheResult stores a successful analysis keyed by digest. Failures are
// never cached so a failing batch is retried on a later pass.
func (a *Analyzer) cacheResult(ctx context.Context, digest string, result *Result) {
	payload, err := json.Marshal(cachedResult{
		Candidates: result.Candidates,
		AnalysisID: result.AnalysisID,
	})
	if err != nil {
		a.logger.Warn("failed to encode cache payload", "error", err)
		return
	}

	entry := &storage.AnalysisCacheEntry{
		Digest:     digest,
		ResultJSON: string(payload),
		Model:      a.model,
	}
	if a.cacheTTL > 0 {
		now := time.Now()
		entry.CreatedAtUnixMs = now.UnixMilli()
		entry.ExpiresAtUnixMs = now.Add(a.cacheTTL).UnixMilli()
	}
	if err := a.store.PutAnalysis(ctx, entry); err != nil {
		a.logger.Warn("failed to cache analysis", "digest", digest, "error", err)
	}
}
