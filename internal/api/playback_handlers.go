package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/http/response"
	"github.com/readalong/narration-server/internal/store"
)

// cacheOneDayPrivate is the Cache-Control for shard audio, which is
// immutable once written (re-synthesis replaces the whole partition).
const cacheOneDayPrivate = "private, max-age=86400"

// handleListVoices returns the voice IDs with at least one shard for a book.
func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	voices, err := s.store.ListVoices(r.Context(), bookID)
	if err != nil {
		s.logger.Error("Failed to list voices", "error", err, "book_id", bookID)
		response.InternalError(w, "Failed to retrieve voices", s.logger)
		return
	}

	response.Success(w, voices, s.logger)
}

// handlePurgeVoice removes a voice's entire shard partition, records and
// audio both. Used when a narrator voice is retired.
func (s *Server) handlePurgeVoice(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	voiceID := chi.URLParam(r, "voiceID")

	count, err := s.narration.PurgeVoice(r.Context(), bookID, voiceID)
	if err != nil {
		s.logger.Error("Failed to purge voice", "error", err, "book_id", bookID, "voice_id", voiceID)
		response.InternalError(w, "Failed to purge voice", s.logger)
		return
	}

	response.Success(w, map[string]any{
		"book_id":  bookID,
		"voice_id": voiceID,
		"purged":   count,
	}, s.logger)
}

// handleListShards returns a voice's shards in playback order.
func (s *Server) handleListShards(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	voiceID := chi.URLParam(r, "voiceID")

	shards, err := s.store.ListShards(r.Context(), bookID, voiceID)
	if err != nil {
		s.logger.Error("Failed to list shards", "error", err, "book_id", bookID, "voice_id", voiceID)
		response.InternalError(w, "Failed to retrieve shards", s.logger)
		return
	}

	response.Success(w, shards, s.logger)
}

// handleGetShard returns one shard record, timing marks included.
func (s *Server) handleGetShard(w http.ResponseWriter, r *http.Request) {
	shard, ok := s.shardFromRequest(w, r)
	if !ok {
		return
	}
	response.Success(w, shard, s.logger)
}

// handleStreamShardAudio streams a shard's audio with HTTP Range support
// for seeking.
func (s *Server) handleStreamShardAudio(w http.ResponseWriter, r *http.Request) {
	shard, ok := s.shardFromRequest(w, r)
	if !ok {
		return
	}

	path := s.blobs.FullPath(shard.AudioPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.logger.Error("Shard audio missing from disk",
			"book_id", shard.BookID,
			"voice_id", shard.VoiceID,
			"chunk", shard.ChunkIndex,
			"path", path,
		)
		response.NotFound(w, "Shard audio not found on disk", s.logger)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", cacheOneDayPrivate)

	// http.ServeFile handles Range requests, Content-Length/Content-Range,
	// Accept-Ranges, and Last-Modified caching.
	http.ServeFile(w, r, path)
}

// handleNextShard returns the shard after the given one in playback order.
// A successful response with null data means the given shard is the last;
// the client ends playback instead of polling.
func (s *Server) handleNextShard(w http.ResponseWriter, r *http.Request) {
	shard, ok := s.shardFromRequest(w, r)
	if !ok {
		return
	}

	next, err := s.coordinator.NextShard(r.Context(), shard)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, next, s.logger)
}

// handleSelectShard resolves a playback start point: which shard contains
// the requested word, and the intra-shard time offset to seek to.
// GET /api/v1/books/{id}/voices/{voiceID}/position?word=N
func (s *Server) handleSelectShard(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	voiceID := chi.URLParam(r, "voiceID")

	wordIndex, err := strconv.Atoi(r.URL.Query().Get("word"))
	if err != nil {
		response.BadRequest(w, "word query parameter must be an integer", s.logger)
		return
	}

	selection, err := s.coordinator.SelectShard(r.Context(), bookID, voiceID, wordIndex)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, selection, s.logger)
}

// shardFromRequest loads the shard addressed by the URL, writing the error
// response itself when the shard cannot be served.
func (s *Server) shardFromRequest(w http.ResponseWriter, r *http.Request) (*domain.AudioShard, bool) {
	bookID := chi.URLParam(r, "id")
	voiceID := chi.URLParam(r, "voiceID")

	chunk, err := strconv.Atoi(chi.URLParam(r, "chunk"))
	if err != nil || chunk < 0 {
		response.BadRequest(w, "chunk must be a non-negative integer", s.logger)
		return nil, false
	}

	sh, err := s.store.GetShard(r.Context(), bookID, voiceID, chunk)
	if err != nil {
		if errors.Is(err, store.ErrShardNotFound) {
			response.NotFound(w, "Shard not found", s.logger)
			return nil, false
		}
		response.HandleError(w, err, s.logger)
		return nil, false
	}

	return sh, true
}
