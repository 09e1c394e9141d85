package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/seanstash/stashd/internal/enhance"
	"github.com/seanstash/stashd/internal/storage"
)

// ingestRequest is the capture CLI's batch submission.
type ingestRequest struct {
	Commands []string `json:"commands"`
}

type ingestResponse struct {
	Received int `json:"received"`
	Accepted int `json:"accepted"`
	Inserted int `json:"inserted"`
}

type statusResponse struct {
	Version   string         `json:"version"`
	UptimeSec int64          `json:"uptime_sec"`
	Worker    enhance.Status `json:"worker"`
	Cache     *cacheStatus   `json:"cache,omitempty"`
}

type cacheStatus struct {
	Entries int64 `json:"entries"`
	Expired int64 `json:"expired"`
	Hits    int64 `json:"hits"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/snippets", s.handleIngest)
	mux.HandleFunc("GET /api/v2/enhancement/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// handleIngest accepts a batch of captured commands from the CLI,
// screens them, and stores the survivors as raw snippets.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Commands) == 0 {
		writeError(w, http.StatusBadRequest, "commands is required")
		return
	}

	accepted := req.Commands
	if s.filter != nil {
		accepted = s.filter.Keep(accepted)
	}
	if s.redact && s.sanitizer != nil {
		accepted = s.sanitizer.SanitizeAll(accepted)
	}

	inserted, err := s.store.InsertRawCommands(r.Context(), userID, accepted)
	if err != nil {
		s.logger.Error("ingest insert failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.logger.Info("commands ingested",
		"user", userID,
		"received", len(req.Commands),
		"accepted", len(accepted),
		"inserted", inserted)

	writeJSON(w, http.StatusOK, ingestResponse{
		Received: len(req.Commands),
		Accepted: len(accepted),
		Inserted: inserted,
	})
}

// handleStatus reports the worker snapshot and cache counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:   Version,
		UptimeSec: int64(time.Since(s.startTime).Seconds()),
		Worker:    s.worker.Status(r.Context()),
	}

	if stats, err := s.store.AnalysisCacheStats(r.Context()); err == nil {
		resp.Cache = &cacheStatus{
			Entries: stats.TotalEntries,
			Expired: stats.ExpiredEntries,
			Hits:    stats.TotalHits,
		}
	} else {
		s.logger.Warn("cache stats unavailable", "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the X-API-Key header to a user id, writing the
// error response itself on failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (int64, bool) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		writeError(w, http.StatusUnauthorized, "X-API-Key header is required")
		return 0, false
	}

	userID, err := s.store.ResolveAPIKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return 0, false
		}
		s.logger.Error("API key lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return 0, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
