// Package tts provides the text-to-speech collaborator contract and an
// HTTP client for a speech-marks-capable provider.
package tts

import "context"

// SpeechMark is a provider-native word mark. TimeMs is absolute within one
// synthesis call; the synthesis pipeline rebases it to shard-relative time
// and attaches the book-level word index - provider time is never used
// directly.
type SpeechMark struct {
	TimeMs int64  `json:"time"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

// Result is one synthesis call's output: compressed audio plus the ordered
// word marks for the submitted text.
type Result struct {
	Audio []byte
	Marks []SpeechMark
}

// Synthesizer converts plain text to narrated audio with word-level speech
// marks.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (*Result, error)
}
