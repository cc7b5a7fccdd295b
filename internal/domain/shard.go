package domain

import (
	"fmt"
	"time"
)

// TimingMark maps one narrated word to its playback time within a shard.
// Times are shard-relative milliseconds; AbsIndex is the word's index in
// the book's token stream and must fall inside the owning shard's range.
type TimingMark struct {
	AbsIndex int    `json:"absIndex"`
	TimeMs   int64  `json:"time"`
	EndMs    int64  `json:"end,omitempty"`
	Value    string `json:"value"`
	Type     string `json:"type"`
}

// MarkTypeWord is the only mark type the resolver consumes.
const MarkTypeWord = "word"

// AudioShard is a contiguous, independently playable slice of a book's
// narration covering the closed word range [StartWordIndex, EndWordIndex].
// Shards are created by the synthesis pipeline and never mutated except by
// full re-synthesis; a book's shards are partitioned by voice.
type AudioShard struct {
	BookID         string       `json:"book_id"`
	VoiceID        string       `json:"voice_id"`
	ChunkIndex     int          `json:"chunk_index"`
	StartWordIndex int          `json:"start_word_index"`
	EndWordIndex   int          `json:"end_word_index"`
	AudioPath      string       `json:"audio_path"`
	Timings        []TimingMark `json:"timings"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ShardID generates the composite key "bookID:voiceID:chunkIndex".
func ShardID(bookID, voiceID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%05d", bookID, voiceID, chunkIndex)
}

// ID returns the shard's composite key.
func (s *AudioShard) ID() string {
	return ShardID(s.BookID, s.VoiceID, s.ChunkIndex)
}

// Contains reports whether wordIndex falls within the shard's word range.
func (s *AudioShard) Contains(wordIndex int) bool {
	return wordIndex >= s.StartWordIndex && wordIndex <= s.EndWordIndex
}

// WordCount returns the number of words the shard covers.
func (s *AudioShard) WordCount() int {
	return s.EndWordIndex - s.StartWordIndex + 1
}

// OffsetForWord returns the playback offset (shard-relative ms) for seeking
// to wordIndex: the time of the greatest mark with AbsIndex <= wordIndex.
// Returns 0 when no such mark exists (first word, or marks missing due to
// an alignment mismatch).
func (s *AudioShard) OffsetForWord(wordIndex int) int64 {
	var offset int64
	for i := range s.Timings {
		if s.Timings[i].AbsIndex > wordIndex {
			break
		}
		offset = s.Timings[i].TimeMs
	}
	return offset
}

// Validate checks the shard's internal invariants: a non-empty word range,
// every mark inside that range, and marks ascending by time and AbsIndex in
// lockstep.
func (s *AudioShard) Validate() error {
	if s.StartWordIndex < 0 {
		return fmt.Errorf("shard %s: negative start word index %d", s.ID(), s.StartWordIndex)
	}
	if s.EndWordIndex < s.StartWordIndex {
		return fmt.Errorf("shard %s: end word index %d before start %d", s.ID(), s.EndWordIndex, s.StartWordIndex)
	}

	prevTime := int64(-1)
	prevAbs := -1
	for i := range s.Timings {
		m := &s.Timings[i]
		if m.AbsIndex < s.StartWordIndex || m.AbsIndex > s.EndWordIndex {
			return fmt.Errorf("shard %s: mark %d abs index %d outside range [%d,%d]",
				s.ID(), i, m.AbsIndex, s.StartWordIndex, s.EndWordIndex)
		}
		if m.TimeMs < prevTime {
			return fmt.Errorf("shard %s: mark %d time %dms before previous %dms", s.ID(), i, m.TimeMs, prevTime)
		}
		if m.AbsIndex <= prevAbs {
			return fmt.Errorf("shard %s: mark %d abs index %d not increasing (previous %d)", s.ID(), i, m.AbsIndex, prevAbs)
		}
		prevTime = m.TimeMs
		prevAbs = m.AbsIndex
	}
	return nil
}

// CheckContinuity verifies that shards (ordered by ChunkIndex) exactly abut:
// shard[i].EndWordIndex+1 == shard[i+1].StartWordIndex, with no gap or
// overlap. A violation is a data-integrity bug to be fixed by re-running
// synthesis, not papered over at playback time.
func CheckContinuity(shards []*AudioShard) error {
	for i := 1; i < len(shards); i++ {
		prev, cur := shards[i-1], shards[i]
		if cur.ChunkIndex != prev.ChunkIndex+1 {
			return fmt.Errorf("chunk index gap between shard %d and %d", prev.ChunkIndex, cur.ChunkIndex)
		}
		if cur.StartWordIndex != prev.EndWordIndex+1 {
			return fmt.Errorf("shard %d ends at word %d but shard %d starts at word %d",
				prev.ChunkIndex, prev.EndWordIndex, cur.ChunkIndex, cur.StartWordIndex)
		}
	}
	return nil
}

// FindShard returns the shard containing wordIndex, or nil if the index
// falls outside every shard in the set.
func FindShard(shards []*AudioShard, wordIndex int) *AudioShard {
	for _, s := range shards {
		if s.Contains(wordIndex) {
			return s
		}
	}
	return nil
}
