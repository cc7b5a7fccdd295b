package playback

import "github.com/readalong/narration-server/internal/domain"

// State is the resolver's playback state.
type State string

// Resolver states. Transitions are driven entirely by external playback
// events (play, pause, seek, shard boundary); the resolver holds no timers.
const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Resolver maps elapsed time within the current shard to the active word
// index, driving text highlighting. It is a pure function of its inputs,
// invoked synchronously on each playback time update; single-threaded by
// design - each book's playback is owned by exactly one reader instance.
//
// All times passed to Resolve are shard-relative milliseconds. On a shard
// boundary the caller must enter the next shard, which resets the time
// base to 0; feeding absolute timeline time to a later shard is the
// classic off-by-one this type exists to prevent.
type Resolver struct {
	shard     *domain.AudioShard
	state     State
	lastIndex int
}

// NewResolver creates an idle resolver with no shard loaded.
func NewResolver() *Resolver {
	return &Resolver{state: StateIdle, lastIndex: -1}
}

// State returns the current playback state.
func (r *Resolver) State() State {
	return r.state
}

// EnterShard loads a shard and resets the highlight to its first word.
// Called on playback start and on every boundary crossing.
func (r *Resolver) EnterShard(shard *domain.AudioShard) {
	r.shard = shard
	r.lastIndex = shard.StartWordIndex
}

// Play transitions to playing. Valid from any state except Ended without a
// shard loaded.
func (r *Resolver) Play() {
	if r.shard != nil {
		r.state = StatePlaying
	}
}

// Pause transitions from playing to paused. The highlight stays on the
// last resolved word.
func (r *Resolver) Pause() {
	if r.state == StatePlaying {
		r.state = StatePaused
	}
}

// End marks playback finished. The final word stays highlighted.
func (r *Resolver) End() {
	r.state = StateEnded
}

// Resolve returns the active word index for the current shard-relative
// playback time: the absIndex of the greatest mark with time <= currentMs.
// If currentMs precedes the first mark, the shard's start word is active.
// Past the last mark the last known word holds - a missing mark freezes
// the highlight, it never breaks playback.
func (r *Resolver) Resolve(currentMs int64) int {
	if r.shard == nil {
		return -1
	}

	idx := resolveIndex(r.shard, currentMs)
	r.lastIndex = idx
	return idx
}

// LastIndex returns the most recently resolved word index, or the shard
// start if nothing has been resolved yet.
func (r *Resolver) LastIndex() int {
	return r.lastIndex
}

// resolveIndex binary-searches the shard's ascending timings for the
// greatest mark whose time is <= currentMs.
func resolveIndex(shard *domain.AudioShard, currentMs int64) int {
	timings := shard.Timings
	if len(timings) == 0 || currentMs < timings[0].TimeMs {
		return shard.StartWordIndex
	}

	// Invariant: timings[lo].TimeMs <= currentMs < timings[hi].TimeMs.
	lo, hi := 0, len(timings)
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if timings[mid].TimeMs <= currentMs {
			lo = mid
		} else {
			hi = mid
		}
	}
	return timings[lo].AbsIndex
}
