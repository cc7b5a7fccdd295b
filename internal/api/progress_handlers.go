package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/http/response"
	"github.com/readalong/narration-server/internal/store"
)

// saveProgressRequest is the payload for saving a reading position.
type saveProgressRequest struct {
	WordIndex       int     `json:"word_index" validate:"gte=0"`
	PlaybackTimeSec float64 `json:"playback_time_sec" validate:"gte=0"`
	PlaybackSpeed   float64 `json:"playback_speed" validate:"gt=0,lte=4"`
}

// handleSaveProgress upserts the last-read position for a profile and book.
func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID := chi.URLParam(r, "profileID")
	bookID := chi.URLParam(r, "bookID")

	var req saveProgressRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	progress := &domain.ReadingProgress{
		ProfileID:       profileID,
		BookID:          bookID,
		WordIndex:       req.WordIndex,
		PlaybackTimeSec: req.PlaybackTimeSec,
		PlaybackSpeed:   req.PlaybackSpeed,
	}

	if err := s.store.UpsertReadingProgress(ctx, progress); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, progress, s.logger)
}

// handleGetProgress returns the saved position for a profile and book.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	bookID := chi.URLParam(r, "bookID")

	progress, err := s.store.GetReadingProgress(r.Context(), profileID, bookID)
	if err != nil {
		if errors.Is(err, store.ErrProgressNotFound) {
			response.NotFound(w, "No saved progress", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, progress, s.logger)
}

// handleListProgress returns all saved positions for a profile.
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	entries, err := s.store.ListProgressForProfile(r.Context(), profileID)
	if err != nil {
		s.logger.Error("Failed to list progress", "error", err, "profile_id", profileID)
		response.InternalError(w, "Failed to retrieve progress", s.logger)
		return
	}

	response.Success(w, entries, s.logger)
}

// handleSaveLocalProgress saves a resume position in the device-local
// cache. The cache is best effort, so the write itself cannot fail.
func (s *Server) handleSaveLocalProgress(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	var req saveProgressRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.progress.Save(bookID, req.WordIndex, req.PlaybackTimeSec, req.PlaybackSpeed)

	response.Success(w, s.progress.Get(bookID), s.logger)
}

// handleGetLocalProgress returns the device-local resume position for a
// book, if any.
func (s *Server) handleGetLocalProgress(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	entry := s.progress.Get(bookID)
	if entry == nil {
		response.NotFound(w, "No saved position", s.logger)
		return
	}

	response.Success(w, entry, s.logger)
}

// handleClearLocalProgress removes the device-local resume position.
func (s *Server) handleClearLocalProgress(w http.ResponseWriter, r *http.Request) {
	s.progress.Clear(chi.URLParam(r, "bookID"))
	response.NoContent(w)
}

// handleDeleteProgress clears the saved position for a profile and book.
func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	bookID := chi.URLParam(r, "bookID")

	// Deleting absent progress is a no-op, matching the cache semantics.
	if err := s.store.DeleteReadingProgress(r.Context(), profileID, bookID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}
