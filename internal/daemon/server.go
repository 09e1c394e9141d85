// Package daemon implements the stashd HTTP daemon.
// It serves the capture ingest API and the enhancement status surface,
// and owns the process-level lifecycle (lock file, PID file, shutdown).
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/seanstash/stashd/internal/config"
	"github.com/seanstash/stashd/internal/enhance"
	"github.com/seanstash/stashd/internal/sanitize"
	"github.com/seanstash/stashd/internal/storage"
)

// Version is set at build time
var Version = "dev"

// cachePruneInterval controls how often expired analysis cache entries
// are removed.
const cachePruneInterval = time.Hour

// Server is the stashd daemon server.
type Server struct {
	store     storage.Store
	worker    *enhance.Worker
	filter    *sanitize.Filter
	sanitizer *sanitize.Sanitizer
	redact    bool

	httpServer *http.Server
	listener   net.Listener
	lock       *LockFile
	paths      *config.Paths
	logger     *slog.Logger

	listenAddr   string
	startTime    time.Time
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	stopPrune    chan struct{}
}

// ServerConfig contains configuration options for the daemon server.
type ServerConfig struct {
	// Store is the storage backend (required)
	Store storage.Store

	// Worker is the enhancement worker (required)
	Worker *enhance.Worker

	// Filter screens captured commands before ingest (optional)
	Filter *sanitize.Filter

	// Sanitizer redacts secrets from accepted commands (optional)
	Sanitizer *sanitize.Sanitizer

	// RedactSecrets enables secret redaction on ingest
	RedactSecrets bool

	// Paths is the path configuration (optional, uses defaults if nil)
	Paths *config.Paths

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// ListenAddr is the HTTP listen address (default 127.0.0.1:8742)
	ListenAddr string
}

// NewServer creates a new daemon server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Worker == nil {
		return nil, fmt.Errorf("worker is required")
	}

	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listenAddr := cfg.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8742"
	}

	return &Server{
		store:      cfg.Store,
		worker:     cfg.Worker,
		filter:     cfg.Filter,
		sanitizer:  cfg.Sanitizer,
		redact:     cfg.RedactSecrets,
		paths:      paths,
		logger:     logger,
		listenAddr: listenAddr,
		startTime:  time.Now(),
		stopPrune:  make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock, starts the worker and the HTTP server,
// and blocks until the context is cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	s.lock = NewLockFile(s.paths.LockFile())
	if err := s.lock.Acquire(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		s.lock.Release()
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.listener = listener

	if err := s.writePIDFile(); err != nil {
		listener.Close()
		s.lock.Release()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("daemon starting",
		"addr", listener.Addr().String(),
		"pid", os.Getpid(),
		"version", Version,
	)

	s.worker.Start(ctx)

	s.wg.Add(1)
	go s.pruneCacheLoop()

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		s.Shutdown()
		return err
	}
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("daemon shutting down")

		close(s.stopPrune)

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Warn("http shutdown failed", "error", err)
			}
		}

		s.worker.Stop()
		s.wg.Wait()
		s.cleanup()

		s.logger.Info("daemon stopped")
	})
}

// pruneCacheLoop periodically removes expired analysis cache entries.
func (s *Server) pruneCacheLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(cachePruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPrune:
			return
		case <-ticker.C:
			n, err := s.store.PruneExpiredAnalyses(context.Background())
			if err != nil {
				s.logger.Warn("cache prune failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("pruned expired cache entries", "count", n)
			}
		}
	}
}

// cleanup removes the PID file and releases the lock.
func (s *Server) cleanup() {
	pidPath := s.paths.PIDFile()
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove PID file", "path", pidPath, "error", err)
	}
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("failed to release lock", "error", err)
		}
	}
}

// writePIDFile writes the current process ID to the PID file.
func (s *Server) writePIDFile() error {
	return os.WriteFile(s.paths.PIDFile(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}
