package narration

import (
	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/tts"
)

// AttachMarks converts provider speech marks into shard timing marks for a
// range starting at startWordIndex. Marks are attached positionally: the
// k-th mark maps to the k-th word of the range, because the synthesis text
// was built by walking the token stream in exactly that order.
//
// When the provider's mark count disagrees with the expected word count
// (contractions, numerals, punctuation-driven merging), the shard is not
// failed: the aligned prefix is attached and the mismatch is reported via
// the second return value. Highlighting downstream simply holds the last
// known word until the next mark.
//
// Provider times are absolute within the synthesis call; baseMs is
// subtracted to rebase them to shard-relative time. One call per shard
// means a base of 0, but the rebase stays explicit so the provider's
// timeline is never trusted directly.
func AttachMarks(words []string, startWordIndex int, providerMarks []tts.SpeechMark, baseMs int64) (marks []domain.TimingMark, mismatch bool) {
	n := min(len(words), len(providerMarks))
	mismatch = len(words) != len(providerMarks)

	var lastTime int64 = -1
	for k := 0; k < n; k++ {
		pm := &providerMarks[k]
		timeMs := pm.TimeMs - baseMs
		if timeMs < 0 || timeMs < lastTime {
			// A rewinding mark would break monotonicity; stop attaching
			// here rather than emit a mark the resolver cannot order.
			mismatch = true
			break
		}

		marks = append(marks, domain.TimingMark{
			AbsIndex: startWordIndex + k,
			TimeMs:   timeMs,
			Value:    pm.Value,
			Type:     domain.MarkTypeWord,
		})
		lastTime = timeMs
	}

	return marks, mismatch
}
