package domain

import "time"

// ShardResult is the per-shard outcome of a synthesis run.
type ShardResult struct {
	ChunkIndex     int    `json:"chunk_index"`
	StartWordIndex int    `json:"start_word_index"`
	EndWordIndex   int    `json:"end_word_index"`
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
	MarkCount      int    `json:"mark_count"`
}

// NarrationRun records one synthesis run over a (book, voice) pair: the
// planned shards and how each settled. Runs are the observable form of the
// pipeline's join barrier - book status only flips after every shard task
// has settled.
type NarrationRun struct {
	ID         string        `json:"id"`
	BookID     string        `json:"book_id"`
	VoiceID    string        `json:"voice_id"`
	ShardCount int           `json:"shard_count"`
	Results    []ShardResult `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	SettledAt  *time.Time    `json:"settled_at,omitempty"`
}

// Settled reports whether every shard task has finished.
func (r *NarrationRun) Settled() bool {
	return r.SettledAt != nil
}

// Succeeded returns the number of shards that synthesized successfully.
func (r *NarrationRun) Succeeded() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].OK {
			n++
		}
	}
	return n
}

// Failed returns the number of shards that failed.
func (r *NarrationRun) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Outcome derives the book status a settled run implies.
func (r *NarrationRun) Outcome() NarrationStatus {
	switch {
	case r.Failed() == 0:
		return NarrationReady
	case r.Succeeded() == 0:
		return NarrationNeedsAttention
	default:
		return NarrationPartial
	}
}
