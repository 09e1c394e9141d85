// Package storage provides SQLite-based persistent storage for stashd.
// It holds raw command captures, enhanced snippets, the analysis cache,
// and the provider usage ledger.
package storage

import (
	"context"
)

// Store defines the interface for all storage operations.
// The daemon is the single writer; the enhancement worker owns the
// raw-to-enhanced transition and nothing else creates enhanced snippets
// from raw captures.
type Store interface {
	// Users and API keys
	EnsureUser(ctx context.Context, username string) (int64, error)
	CreateAPIKey(ctx context.Context, userID int64, label string) (string, error)
	ResolveAPIKey(ctx context.Context, key string) (int64, error)

	// Raw command captures
	InsertRawCommands(ctx context.Context, userID int64, commands []string) (int, error)
	FindUnprocessedRawCommands(ctx context.Context, limit int) ([]RawCommand, error)
	CountUnprocessedRawCommands(ctx context.Context) (int64, error)
	MarkCommandsProcessed(ctx context.Context, userID int64, hashes []string) error
	DeleteRawCommand(ctx context.Context, id int64) error
	DeleteRawCommandsByText(ctx context.Context, userID int64, command string) (int64, error)

	// Enhanced snippets
	InsertEnhancedSnippet(ctx context.Context, userID int64, snip *NewEnhancedSnippet) (int64, error)
	FindSnippetByTitle(ctx context.Context, userID int64, title string) (*Snippet, error)
	GetSnippet(ctx context.Context, id int64) (*Snippet, error)

	// Analysis cache
	GetAnalysis(ctx context.Context, digest string) (*AnalysisCacheEntry, error)
	PutAnalysis(ctx context.Context, entry *AnalysisCacheEntry) error
	PruneExpiredAnalyses(ctx context.Context) (int64, error)
	AnalysisCacheStats(ctx context.Context) (*CacheStats, error)

	// Usage ledger
	InsertUsageRecord(ctx context.Context, rec *UsageRecord) error
	UsageTotals(ctx context.Context, userID int64) (*UsageTotals, error)

	// Lifecycle
	Close() error
}

// RawCommand is a captured terminal command awaiting enhancement.
// It is stored as a snippet row carrying the raw marker; the command text
// doubles as the row title so exact-text cleanup is a title match.
type RawCommand struct {
	ID              int64
	UserID          int64
	Command         string
	CommandHash     string
	CreatedAtUnixMs int64
	UpdatedAtUnixMs int64
}

// Fragment is one code block of a snippet.
type Fragment struct {
	ID       int64
	FileName string
	Code     string
	Language string
	Position int
}

// Snippet is a stored snippet with its categories and fragments.
type Snippet struct {
	ID              int64
	UserID          int64
	Title           string
	Description     string
	IsPublic        bool
	Locked          bool
	IsRaw           bool
	Categories      []string
	Fragments       []Fragment
	CreatedAtUnixMs int64
	UpdatedAtUnixMs int64
}

// NewFragment is the input form of a fragment.
type NewFragment struct {
	FileName string
	Code     string
	Language string
	Position int
}

// NewEnhancedSnippet is the input for persisting a validated analysis
// candidate, including the audit link back to the originating commands.
type NewEnhancedSnippet struct {
	Title          string
	Description    string
	Categories     []string
	Fragments      []NewFragment
	IsPublic       bool
	Locked         bool
	AnalysisID     string
	SourceCommands []string
}

// AnalysisCacheEntry is a cached, validated analysis result keyed by the
// batch digest.
type AnalysisCacheEntry struct {
	Digest          string
	ResultJSON      string
	Model           string
	HitCount        int64
	CreatedAtUnixMs int64
	LastHitUnixMs   int64
	ExpiresAtUnixMs int64
}

// CacheStats summarizes the analysis cache.
type CacheStats struct {
	TotalEntries   int64
	ExpiredEntries int64
	TotalHits      int64
}

// UsageRecord is one append-only ledger row for a provider call.
type UsageRecord struct {
	ID              int64
	UserID          int64
	TokensIn        int64
	TokensOut       int64
	CostUSD         float64
	Model           string
	AnalysisID      string
	CreatedAtUnixMs int64
}

// UsageTotals aggregates the ledger for one owner.
type UsageTotals struct {
	Calls     int64
	TokensIn  int64
	TokensOut int64
	CostUSD   float64
}
