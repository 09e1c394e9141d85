// Package enhance runs the scheduled worker that turns raw captured
// commands into enhanced snippets. The worker exclusively owns the
// raw-to-enhanced transition.
package enhance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seanstash/stashd/internal/analyze"
	"github.com/seanstash/stashd/internal/storage"
)

// Config controls the worker schedule and reconciliation behavior.
type Config struct {
	PollInterval     time.Duration
	BatchSize        int
	OwnerDelay       time.Duration
	MaxCandidates    int
	GroupSimilar     bool
	CleanupRedundant bool
}

// Status is a snapshot of the worker for the status surface.
type Status struct {
	Running        bool      `json:"running"`
	Processing     bool      `json:"processing"`
	Interval       string    `json:"interval"`
	BatchSize      int       `json:"batch_size"`
	LastPass       time.Time `json:"last_pass,omitempty"`
	PassCount      int64     `json:"pass_count"`
	SnippetsCount  int64     `json:"snippets_created"`
	OwnersFailed   int64     `json:"owners_failed"`
	PendingBacklog int64     `json:"pending_backlog"`
}

// Worker periodically pulls unprocessed raw commands, analyzes them per
// owner, and reconciles storage.
type Worker struct {
	store    storage.Store
	analyzer *analyze.Analyzer
	logger   *slog.Logger
	cfg      Config

	running    atomic.Bool
	processing atomic.Bool
	passCount  atomic.Int64
	snippets   atomic.Int64
	failures   atomic.Int64

	mu       sync.Mutex
	lastPass time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a worker. Zero config fields get the defaults used
// by the daemon (30s interval, batches of 10, 2s between owners).
func NewWorker(store storage.Store, analyzer *analyze.Analyzer, logger *slog.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.OwnerDelay < 0 {
		cfg.OwnerDelay = 0
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		analyzer: analyzer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start runs one pass immediately, then a pass on every tick until the
// context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer w.running.Store(false)

		w.RunPass(ctx)

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunPass(ctx)
			}
		}
	}()
}

// Stop cancels the schedule and waits for an in-flight pass to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Status reports the worker snapshot, including the store backlog.
func (w *Worker) Status(ctx context.Context) Status {
	w.mu.Lock()
	lastPass := w.lastPass
	w.mu.Unlock()

	backlog, err := w.store.CountUnprocessedRawCommands(ctx)
	if err != nil {
		w.logger.Warn("failed to count backlog", "error", err)
	}

	return Status{
		Running:        w.running.Load(),
		Processing:     w.processing.Load(),
		Interval:       w.cfg.PollInterval.String(),
		BatchSize:      w.cfg.BatchSize,
		LastPass:       lastPass,
		PassCount:      w.passCount.Load(),
		SnippetsCount:  w.snippets.Load(),
		OwnersFailed:   w.failures.Load(),
		PendingBacklog: backlog,
	}
}

// RunPass executes one enhancement pass. A tick that arrives while a
// pass is in flight is skipped, not queued.
func (w *Worker) RunPass(ctx context.Context) {
	if !w.processing.CompareAndSwap(false, true) {
		w.logger.Debug("pass already running, skipping tick")
		return
	}
	defer w.processing.Store(false)

	w.passCount.Add(1)
	w.mu.Lock()
	w.lastPass = time.Now()
	w.mu.Unlock()

	commands, err := w.store.FindUnprocessedRawCommands(ctx, w.cfg.BatchSize*5)
	if err != nil {
		w.logger.Error("failed to query unprocessed commands", "error", err)
		return
	}
	if len(commands) == 0 {
		return
	}

	byOwner := groupByOwner(commands)
	w.logger.Info("enhancement pass started",
		"commands", len(commands), "owners", len(byOwner))

	first := true
	for _, owner := range byOwner {
		if ctx.Err() != nil {
			return
		}
		if !first && w.cfg.OwnerDelay > 0 {
			select {
			case <-time.After(w.cfg.OwnerDelay):
			case <-ctx.Done():
				return
			}
		}
		first = false

		batch := owner.commands
		if len(batch) > w.cfg.BatchSize {
			batch = batch[:w.cfg.BatchSize]
		}
		if err := w.processOwnerCommands(ctx, owner.id, batch); err != nil {
			w.failures.Add(1)
			w.logger.Error("owner batch failed",
				"owner", owner.id, "commands", len(batch), "error", err)
		}
	}
}

type ownerBatch struct {
	id       int64
	commands []storage.RawCommand
}

// groupByOwner buckets commands per owner, preserving the store's
// ordering within and across owners.
func groupByOwner(commands []storage.RawCommand) []ownerBatch {
	index := make(map[int64]int)
	var out []ownerBatch
	for _, cmd := range commands {
		i, ok := index[cmd.UserID]
		if !ok {
			i = len(out)
			index[cmd.UserID] = i
			out = append(out, ownerBatch{id: cmd.UserID})
		}
		out[i].commands = append(out[i].commands, cmd)
	}
	return out
}

// processOwnerCommands analyzes one owner's batch and reconciles storage.
// Bookkeeping failures after a successful provider call are logged and
// swallowed; the dedup guard absorbs the resulting re-runs.
func (w *Worker) processOwnerCommands(ctx context.Context, ownerID int64, batch []storage.RawCommand) error {
	texts := make([]string, len(batch))
	for i, cmd := range batch {
		texts[i] = cmd.Command
	}

	result, err := w.analyzer.AnalyzeCommands(ctx, ownerID, texts, analyze.Options{
		MaxCandidates: w.cfg.MaxCandidates,
		GroupSimilar:  w.cfg.GroupSimilar,
	})
	if err != nil {
		// The provider was reached when a partial result came back;
		// mark the batch so a malformed reply is not retried forever.
		if result != nil {
			w.markProcessed(ctx, ownerID, batch)
		}
		return err
	}

	for _, ve := range result.ValidationErrors {
		w.logger.Warn("candidate rejected", "owner", ownerID, "detail", ve.Error())
	}

	created := 0
	for _, cand := range result.Candidates {
		if err := w.persistCandidate(ctx, ownerID, cand, result.AnalysisID, texts); err != nil {
			w.logger.Error("failed to persist candidate",
				"owner", ownerID, "title", cand.Title, "error", err)
			continue
		}
		created++
	}

	w.markProcessed(ctx, ownerID, batch)

	// Raw captures are only redundant once an enhanced snippet supersedes
	// them; a batch that produced nothing keeps its rows.
	if w.cfg.CleanupRedundant && created > 0 {
		for _, cmd := range batch {
			if _, err := w.store.DeleteRawCommandsByText(ctx, ownerID, cmd.Command); err != nil {
				w.logger.Warn("failed to delete raw command",
					"owner", ownerID, "error", err)
			}
		}
	}

	w.snippets.Add(int64(created))
	w.logger.Info("owner batch enhanced",
		"owner", ownerID,
		"commands", len(batch),
		"snippets", created,
		"cache_hit", result.CacheHit,
		"tokens_in", result.TokensIn,
		"tokens_out", result.TokensOut)

	return nil
}

// persistCandidate writes one candidate unless the owner already has an
// enhanced snippet with the same title.
func (w *Worker) persistCandidate(ctx context.Context, ownerID int64, cand analyze.Candidate, analysisID string, sources []string) error {
	existing, err := w.store.FindSnippetByTitle(ctx, ownerID, cand.Title)
	if err == nil {
		w.logger.Debug("snippet already exists, skipping",
			"owner", ownerID, "title", cand.Title, "id", existing.ID)
		return nil
	}
	if !errors.Is(err, storage.ErrSnippetNotFound) {
		return err
	}

	fragments := make([]storage.NewFragment, len(cand.Fragments))
	for i, f := range cand.Fragments {
		fragments[i] = storage.NewFragment{
			FileName: f.FileName,
			Code:     f.Code,
			Language: f.Language,
			Position: f.Position,
		}
	}

	_, err = w.store.InsertEnhancedSnippet(ctx, ownerID, &storage.NewEnhancedSnippet{
		Title:          cand.Title,
		Description:    cand.Description,
		Categories:     cand.Categories,
		Fragments:      fragments,
		IsPublic:       cand.IsPublic,
		Locked:         cand.Locked,
		AnalysisID:     analysisID,
		SourceCommands: sources,
	})
	return err
}

func (w *Worker) markProcessed(ctx context.Context, ownerID int64, batch []storage.RawCommand) {
	hashes := make([]string, len(batch))
	for i, cmd := range batch {
		hashes[i] = cmd.CommandHash
	}
	if err := w.store.MarkCommandsProcessed(ctx, ownerID, hashes); err != nil {
		w.logger.Warn("failed to mark commands processed",
			"owner", ownerID, "error", err)
	}
}
