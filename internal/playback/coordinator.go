// Package playback provides shard selection and the word-highlight timing
// resolver consumed by reader clients.
package playback

import (
	"context"
	"log/slog"

	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/errors"
	"github.com/readalong/narration-server/internal/store"
)

// Selection is the result of resolving a playback start point: the shard
// containing the requested word and the shard-relative offset to seek to.
type Selection struct {
	Shard    *domain.AudioShard `json:"shard"`
	OffsetMs int64              `json:"offset_ms"`
}

// Coordinator selects shards for playback start points and hands playback
// across shard boundaries.
type Coordinator struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCoordinator creates a playback coordinator.
func NewCoordinator(st *store.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: st, logger: logger}
}

// SelectShard returns the shard containing wordIndex and the intra-shard
// time offset for it: the time of the greatest mark with
// absIndex <= wordIndex, or 0 when no such mark exists. Returns an
// out-of-range error when wordIndex is negative or beyond the last shard's
// end; callers fall back to the nearest valid boundary rather than
// crashing playback.
func (c *Coordinator) SelectShard(ctx context.Context, bookID, voiceID string, wordIndex int) (*Selection, error) {
	if wordIndex < 0 {
		return nil, errors.OutOfRangef("word index %d is negative", wordIndex)
	}

	shards, err := c.store.ListShards(ctx, bookID, voiceID)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, errors.NotFoundf("no narration shards for book %s voice %s", bookID, voiceID)
	}

	last := shards[len(shards)-1]
	if wordIndex > last.EndWordIndex {
		return nil, errors.OutOfRangef("word index %d beyond narrated range (last word %d)", wordIndex, last.EndWordIndex)
	}

	// A gap here means the continuity invariant is broken - an integrity
	// bug fixed by re-running synthesis, not papered over at runtime.
	if err := domain.CheckContinuity(shards); err != nil {
		c.logger.Error("shard continuity violation",
			"book_id", bookID,
			"voice_id", voiceID,
			"error", err,
		)
	}

	shard := domain.FindShard(shards, wordIndex)
	if shard == nil {
		return nil, errors.NotFoundf("no shard covers word index %d (partial narration)", wordIndex)
	}

	return &Selection{
		Shard:    shard,
		OffsetMs: shard.OffsetForWord(wordIndex),
	}, nil
}

// NextShard returns the shard following cur in playback order, or nil when
// cur is the final shard. Used on boundary crossing, where the caller must
// reset its time base to 0 for the new shard.
func (c *Coordinator) NextShard(ctx context.Context, cur *domain.AudioShard) (*domain.AudioShard, error) {
	shard, err := c.store.GetShard(ctx, cur.BookID, cur.VoiceID, cur.ChunkIndex+1)
	if errors.Is(err, store.ErrShardNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return shard, nil
}
