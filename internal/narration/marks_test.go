package narration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/narration-server/internal/tts"
)

func TestAttachMarks_Positional(t *testing.T) {
	words := []string{"once", "upon", "a"}
	providerMarks := []tts.SpeechMark{
		{TimeMs: 0, Type: "word", Value: "once"},
		{TimeMs: 320, Type: "word", Value: "upon"},
		{TimeMs: 700, Type: "word", Value: "a"},
	}

	marks, mismatch := AttachMarks(words, 50, providerMarks, 0)
	require.False(t, mismatch)
	require.Len(t, marks, 3)

	assert.Equal(t, 50, marks[0].AbsIndex)
	assert.Equal(t, 52, marks[2].AbsIndex)
	assert.Equal(t, int64(700), marks[2].TimeMs)
	assert.Equal(t, "upon", marks[1].Value)
}

func TestAttachMarks_FewerMarksThanWords(t *testing.T) {
	words := []string{"don't", "stop", "now"}
	providerMarks := []tts.SpeechMark{
		{TimeMs: 0, Value: "don't"},
		{TimeMs: 400, Value: "stop"},
	}

	marks, mismatch := AttachMarks(words, 0, providerMarks, 0)
	assert.True(t, mismatch)
	require.Len(t, marks, 2)
	assert.Equal(t, 1, marks[1].AbsIndex)
}

func TestAttachMarks_MoreMarksThanWords(t *testing.T) {
	words := []string{"one"}
	providerMarks := []tts.SpeechMark{
		{TimeMs: 0, Value: "one"},
		{TimeMs: 300, Value: "extra"},
	}

	marks, mismatch := AttachMarks(words, 0, providerMarks, 0)
	assert.True(t, mismatch)
	require.Len(t, marks, 1)
}

func TestAttachMarks_Rebase(t *testing.T) {
	words := []string{"hello", "there"}
	providerMarks := []tts.SpeechMark{
		{TimeMs: 10000, Value: "hello"},
		{TimeMs: 10450, Value: "there"},
	}

	marks, mismatch := AttachMarks(words, 0, providerMarks, 10000)
	require.False(t, mismatch)
	assert.Equal(t, int64(0), marks[0].TimeMs)
	assert.Equal(t, int64(450), marks[1].TimeMs)
}

func TestAttachMarks_RewindingTimeStopsAttachment(t *testing.T) {
	words := []string{"a", "b", "c"}
	providerMarks := []tts.SpeechMark{
		{TimeMs: 0, Value: "a"},
		{TimeMs: 500, Value: "b"},
		{TimeMs: 200, Value: "c"},
	}

	marks, mismatch := AttachMarks(words, 0, providerMarks, 0)
	assert.True(t, mismatch)
	require.Len(t, marks, 2)
	assert.Equal(t, int64(500), marks[1].TimeMs)
}

func TestAttachMarks_Empty(t *testing.T) {
	marks, mismatch := AttachMarks(nil, 0, nil, 0)
	assert.False(t, mismatch)
	assert.Empty(t, marks)
}
