package domain

import "time"

// ReadingProgress is the server-persisted last-read position for a profile
// and book. It is deliberately independent of the client-side progress
// cache; neither record is reconciled against the other.
type ReadingProgress struct {
	ProfileID       string    `json:"profile_id"`
	BookID          string    `json:"book_id"`
	WordIndex       int       `json:"word_index"`
	PlaybackTimeSec float64   `json:"playback_time_sec"`
	PlaybackSpeed   float64   `json:"playback_speed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProgressID generates the composite key "profileID:bookID".
func ProgressID(profileID, bookID string) string {
	return profileID + ":" + bookID
}
