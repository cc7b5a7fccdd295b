package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readalong/narration-server/internal/http/response"
	"github.com/readalong/narration-server/internal/store"
)

// startNarrationRequest triggers a synthesis run for one voice.
type startNarrationRequest struct {
	VoiceID string `json:"voice_id" validate:"required,max=100"`
	// Wait blocks the request until the run settles. Intended for small
	// books and tests; normal clients poll the run record instead.
	Wait bool `json:"wait,omitempty"`
}

// handleStartNarration plans and launches a synthesis run. The default is
// fire-and-forget: the run record comes back immediately and the client
// polls it for per-shard results.
func (s *Server) handleStartNarration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID := chi.URLParam(r, "id")

	var req startNarrationRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// The service returns coded errors: 404 for a missing book, 409 when
	// the book has no token stream yet.
	if req.Wait {
		run, err := s.narration.SynthesizeBook(ctx, bookID, req.VoiceID)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Success(w, run, s.logger)
		return
	}

	run, err := s.narration.StartRun(ctx, bookID, req.VoiceID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Accepted(w, run, s.logger)
}

// handleListRuns returns all narration runs for a book, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	runs, err := s.store.ListRunsForBook(r.Context(), bookID)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err, "book_id", bookID)
		response.InternalError(w, "Failed to retrieve narration runs", s.logger)
		return
	}

	response.Success(w, runs, s.logger)
}

// handleGetRun returns a single run record with its per-shard results.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			response.NotFound(w, "Narration run not found", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, run, s.logger)
}
