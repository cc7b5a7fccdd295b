package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/http/response"
	"github.com/readalong/narration-server/internal/id"
	"github.com/readalong/narration-server/internal/store"
)

// createBookRequest is the payload for registering a book.
type createBookRequest struct {
	Title          string `json:"title" validate:"required,min=1,max=500"`
	DefaultVoiceID string `json:"default_voice_id,omitempty" validate:"omitempty,max=100"`
}

// handleCreateBook registers a new book. The token stream is uploaded
// separately; the book starts with no narration.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createBookRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	bookID, err := id.Generate("book")
	if err != nil {
		s.logger.Error("Failed to generate book ID", "error", err)
		response.InternalError(w, "Failed to create book", s.logger)
		return
	}

	now := time.Now()
	book := &domain.Book{
		ID:             bookID,
		Title:          req.Title,
		DefaultVoiceID: req.DefaultVoiceID,
		Status:         domain.NarrationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, book, s.logger)
}

// handleListBooks returns all registered books.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		s.logger.Error("Failed to list books", "error", err)
		response.InternalError(w, "Failed to retrieve books", s.logger)
		return
	}

	response.Success(w, books, s.logger)
}

// handleGetBook returns a single book by ID.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, err := s.store.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			response.NotFound(w, "Book not found", s.logger)
			return
		}
		s.logger.Error("Failed to get book", "error", err, "book_id", bookID)
		response.InternalError(w, "Failed to retrieve book", s.logger)
		return
	}

	response.Success(w, book, s.logger)
}

// handleDeleteBook deletes a book and everything derived from it: token
// stream, shards, run records, and audio blobs.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	if err := s.narration.DeleteBook(r.Context(), bookID); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			response.NotFound(w, "Book not found", s.logger)
			return
		}
		s.logger.Error("Failed to delete book", "error", err, "book_id", bookID)
		response.InternalError(w, "Failed to delete book", s.logger)
		return
	}

	response.NoContent(w)
}
