package store

import (
	"context"
	"fmt"

	"github.com/readalong/narration-server/internal/domain"
)

const shardPrefix = "shard:"

// shardKey builds "shard:bookID:voiceID:chunkIndex" with the chunk index
// zero-padded so Badger's key order is the shard playback order.
func shardKey(bookID, voiceID string, chunkIndex int) string {
	return shardPrefix + domain.ShardID(bookID, voiceID, chunkIndex)
}

// shardPartitionPrefix is the key prefix covering one (book, voice) shard set.
func shardPartitionPrefix(bookID, voiceID string) string {
	return shardPrefix + bookID + ":" + voiceID + ":"
}

// UpsertShard stores a shard keyed by (bookID, voiceID, chunkIndex).
// Writes are idempotent: re-running synthesis for the same shard identity
// overwrites the previous record. The shard's internal invariants are
// checked before anything durable happens.
func (s *Store) UpsertShard(ctx context.Context, shard *domain.AudioShard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := shard.Validate(); err != nil {
		return fmt.Errorf("shard invariant: %w", err)
	}
	return s.set(shardKey(shard.BookID, shard.VoiceID, shard.ChunkIndex), shard)
}

// GetShard retrieves one shard by identity.
func (s *Store) GetShard(ctx context.Context, bookID, voiceID string, chunkIndex int) (*domain.AudioShard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var shard domain.AudioShard
	if err := s.get(shardKey(bookID, voiceID, chunkIndex), &shard, ErrShardNotFound); err != nil {
		return nil, err
	}
	return &shard, nil
}

// ListShards returns all shards of a (book, voice) partition ordered by
// chunk index. Failed chunks are simply absent from the result; completed
// neighbors stay retrievable regardless.
func (s *Store) ListShards(ctx context.Context, bookID, voiceID string) ([]*domain.AudioShard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var shards []*domain.AudioShard
	err := scanPrefix(s, shardPartitionPrefix(bookID, voiceID), func(_ string, sh *domain.AudioShard) error {
		shards = append(shards, sh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shards, nil
}

// ListVoices returns the voice IDs that have at least one shard for a book.
func (s *Store) ListVoices(ctx context.Context, bookID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var voices []string
	err := scanPrefix(s, shardPrefix+bookID+":", func(_ string, sh *domain.AudioShard) error {
		if !seen[sh.VoiceID] {
			seen[sh.VoiceID] = true
			voices = append(voices, sh.VoiceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voices, nil
}

// DeleteVoiceShards removes a whole (book, voice) shard partition, e.g.
// when purging a stale voice. Returns the audio paths of the removed shards
// so the caller can delete the blobs, and the shard count.
func (s *Store) DeleteVoiceShards(ctx context.Context, bookID, voiceID string) ([]string, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var audioPaths []string
	err := scanPrefix(s, shardPartitionPrefix(bookID, voiceID), func(_ string, sh *domain.AudioShard) error {
		audioPaths = append(audioPaths, sh.AudioPath)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	count, err := s.deletePrefix(shardPartitionPrefix(bookID, voiceID))
	if err != nil {
		return nil, 0, err
	}
	return audioPaths, count, nil
}

// DeleteBookShards removes every shard of a book across all voices.
func (s *Store) DeleteBookShards(ctx context.Context, bookID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.deletePrefix(shardPrefix + bookID + ":")
}
