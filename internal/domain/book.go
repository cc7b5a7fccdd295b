package domain

import "time"

// NarrationStatus tracks where a book is in its narration lifecycle.
type NarrationStatus string

// Narration statuses.
const (
	// NarrationPending - book registered, no synthesis run yet.
	NarrationPending NarrationStatus = "pending"
	// NarrationProcessing - a synthesis run is in flight.
	NarrationProcessing NarrationStatus = "processing"
	// NarrationReady - every shard of the latest run synthesized.
	NarrationReady NarrationStatus = "ready"
	// NarrationPartial - some shards synthesized, some failed; completed
	// neighbors remain playable.
	NarrationPartial NarrationStatus = "partial"
	// NarrationNeedsAttention - the latest run produced no playable shards.
	NarrationNeedsAttention NarrationStatus = "needs_attention"
)

// Book is a registered story with its canonical token stream persisted
// separately. WordCount is fixed when the token stream is uploaded;
// replacing the text invalidates all derived shards.
type Book struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	WordCount      int             `json:"word_count"`
	DefaultVoiceID string          `json:"default_voice_id,omitempty"`
	Status         NarrationStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Touch updates the modification timestamp.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now()
}
