// Package align converts forced-aligner output into shard timing marks.
//
// The aligner ingests an audio file plus its transcript and returns
// per-word timestamps in absolute seconds, with an offset marking the
// shard's start within the larger timeline. This package is the strict
// parse-and-validate boundary for that loosely-typed output: well-formed
// entries become TimingMarks, malformed ones are quarantined and counted.
package align

import (
	"math"

	"github.com/readalong/narration-server/internal/domain"
)

// AlignedWord is one word of aligner output, in absolute seconds.
type AlignedWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Alignment is a full aligner response for one audio file.
type Alignment struct {
	Offset float64       `json:"offset"`
	Words  []AlignedWord `json:"words"`
}

// RebaseMs converts an absolute aligner timestamp to shard-relative
// milliseconds: round((t - offset) * 1000).
func RebaseMs(t, offset float64) int64 {
	return int64(math.Round((t - offset) * 1000))
}

// ToTimingMarks converts an alignment into marks for a shard starting at
// startWordIndex. Entries are consumed in order and attached to
// consecutive word indices, mirroring how the transcript was built.
// Malformed entries (empty word, end before start, or a start preceding
// the shard offset) are dropped and counted instead of failing the shard;
// playback simply holds the last known word across the gap.
func ToTimingMarks(a *Alignment, startWordIndex int) (marks []domain.TimingMark, dropped int) {
	next := startWordIndex
	var lastTime int64 = -1

	for i := range a.Words {
		w := &a.Words[i]
		if w.Word == "" || w.End < w.Start || w.Start < a.Offset {
			dropped++
			next++
			continue
		}

		timeMs := RebaseMs(w.Start, a.Offset)
		if timeMs < lastTime {
			// Out-of-order entry; keeping it would break mark monotonicity.
			dropped++
			next++
			continue
		}

		marks = append(marks, domain.TimingMark{
			AbsIndex: next,
			TimeMs:   timeMs,
			EndMs:    RebaseMs(w.End, a.Offset),
			Value:    w.Word,
			Type:     domain.MarkTypeWord,
		})
		lastTime = timeMs
		next++
	}

	return marks, dropped
}
