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

// uploadTokensRequest carries a book's text in one of two forms: raw text
// to be tokenized server-side, or a pre-tokenized stream from an authoring
// pipeline. Exactly one must be set.
type uploadTokensRequest struct {
	Text   string             `json:"text,omitempty"`
	Tokens domain.TokenStream `json:"tokens,omitempty"`
}

// handleUploadTokens replaces a book's canonical token stream. Replacing
// the text invalidates every derived shard, so existing narration for the
// book is purged and the book drops back to pending.
func (s *Server) handleUploadTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID := chi.URLParam(r, "id")

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			response.NotFound(w, "Book not found", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}

	var req uploadTokensRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	var tokens domain.TokenStream
	switch {
	case req.Text != "" && req.Tokens != nil:
		response.BadRequest(w, "Provide either text or tokens, not both", s.logger)
		return
	case req.Text != "":
		tokens = domain.Tokenize(req.Text)
	case req.Tokens != nil:
		tokens = req.Tokens
	default:
		response.BadRequest(w, "Either text or tokens is required", s.logger)
		return
	}

	if tokens.WordCount() == 0 {
		response.BadRequest(w, "Token stream contains no words", s.logger)
		return
	}

	// SaveTokenStream enforces the dense word index invariant.
	if err := s.store.SaveTokenStream(ctx, bookID, tokens); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// Word indices have changed; stale shards must not survive.
	if _, err := s.store.DeleteBookShards(ctx, bookID); err != nil {
		s.logger.Error("Failed to purge stale shards", "error", err, "book_id", bookID)
		response.InternalError(w, "Failed to replace token stream", s.logger)
		return
	}
	if err := s.blobs.DeleteBook(bookID); err != nil {
		s.logger.Warn("Failed to purge stale audio", "error", err, "book_id", bookID)
	}

	book.WordCount = tokens.WordCount()
	book.Status = domain.NarrationPending
	if err := s.store.UpdateBook(ctx, book); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"book_id":    bookID,
		"tokens":     len(tokens),
		"word_count": book.WordCount,
	}, s.logger)
}

// handleGetTokens returns a book's token stream.
func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	tokens, err := s.store.GetTokenStream(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, store.ErrTokensNotFound) {
			response.NotFound(w, "Token stream not found", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, tokens, s.logger)
}
