package narration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/narration-server/internal/align"
	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/domain"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/store"
	"github.com/readalong/narration-server/internal/tts"
)

// fakeSynth returns one mark per word, 100ms apart. Texts containing any
// word in failOn fail with a provider error.
type fakeSynth struct {
	failOn map[string]bool
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string, text string) (*tts.Result, error) {
	words := strings.Fields(text)
	for _, w := range words {
		if f.failOn[w] {
			return nil, fmt.Errorf("provider rejected %q", w)
		}
	}

	marks := make([]tts.SpeechMark, len(words))
	for k, w := range words {
		marks[k] = tts.SpeechMark{TimeMs: int64(k * 100), Type: "word", Value: w}
	}
	return &tts.Result{Audio: []byte("AUDIO:" + text), Marks: marks}, nil
}

// fakeAligner spaces words 500ms apart starting at the given offset.
type fakeAligner struct {
	offset float64
}

func (f *fakeAligner) Align(_ context.Context, _, transcript string) (*align.Alignment, error) {
	words := strings.Fields(transcript)
	aligned := make([]align.AlignedWord, len(words))
	for k, w := range words {
		start := f.offset + float64(k)*0.5
		aligned[k] = align.AlignedWord{Word: w, Start: start, End: start + 0.4}
	}
	return &align.Alignment{Offset: f.offset, Words: aligned}, nil
}

func setupService(t *testing.T, synth tts.Synthesizer, aligner align.Aligner) (*Service, *store.Store) {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := audio.NewStorage(t.TempDir())
	require.NoError(t, err)

	cfg := config.SynthesisConfig{ShardWords: 2, MaxConcurrent: 2}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(st, blobs, synth, aligner, cfg, logger), st
}

func seedBook(t *testing.T, st *store.Store, bookID, text string) {
	t.Helper()
	ctx := context.Background()

	tokens := domain.Tokenize(text)
	now := time.Now()
	require.NoError(t, st.CreateBook(ctx, &domain.Book{
		ID:        bookID,
		Title:     "Test Book",
		WordCount: tokens.WordCount(),
		Status:    domain.NarrationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, st.SaveTokenStream(ctx, bookID, tokens))
}

func TestSynthesizeBook_AllShardsSucceed(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3 w4 w5")

	run, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)

	assert.True(t, run.Settled())
	assert.Equal(t, 3, run.ShardCount)
	assert.Equal(t, 3, run.Succeeded())
	assert.Zero(t, run.Failed())

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NarrationReady, book.Status)

	shards, err := st.ListShards(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	require.Len(t, shards, 3)
	assert.NoError(t, domain.CheckContinuity(shards))

	// Marks carry absolute word indices.
	assert.Equal(t, 2, shards[1].Timings[0].AbsIndex)
	assert.Equal(t, int64(100), shards[1].Timings[1].TimeMs)
}

func TestSynthesizeBook_PartialFailureIsolation(t *testing.T) {
	// Shard 2 covers words w4 w5; only that shard fails.
	svc, st := setupService(t, &fakeSynth{failOn: map[string]bool{"w4": true}}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3 w4 w5 w6 w7 w8 w9")

	run, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)

	assert.Equal(t, 5, run.ShardCount)
	assert.Equal(t, 4, run.Succeeded())
	assert.Equal(t, 1, run.Failed())

	require.Len(t, run.Results, 5)
	assert.False(t, run.Results[2].OK)
	assert.Contains(t, run.Results[2].Error, "w4")

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NarrationPartial, book.Status)

	// Completed neighbors stay playable.
	for _, chunk := range []int{0, 1, 3, 4} {
		_, err := st.GetShard(ctx, "book-1", "voice-1", chunk)
		assert.NoError(t, err, "chunk %d", chunk)
	}
	_, err = st.GetShard(ctx, "book-1", "voice-1", 2)
	assert.ErrorIs(t, err, store.ErrShardNotFound)
}

func TestSynthesizeBook_ResynthesisReplacesStaleShards(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := audio.NewStorage(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3 w4 w5")

	// First run shards 2 words apiece: chunks [0,1] [2,3] [4,5].
	first := NewService(st, blobs, &fakeSynth{}, nil,
		config.SynthesisConfig{ShardWords: 2, MaxConcurrent: 2}, logger)
	_, err = first.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)

	// Re-synthesis with a wider shard plans fewer chunks: [0,2] [3,5].
	// The old chunk 2 must not survive to overlap the new ranges.
	second := NewService(st, blobs, &fakeSynth{}, nil,
		config.SynthesisConfig{ShardWords: 3, MaxConcurrent: 2}, logger)
	run, err := second.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Succeeded())

	shards, err := st.ListShards(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.NoError(t, domain.CheckContinuity(shards))
	assert.Equal(t, 5, shards[1].EndWordIndex)

	assert.False(t, blobs.Exists(audio.ObjectPath("book-1", "voice-1", 2)))
}

func TestIngestRecorded_ReplacesSynthesizedShards(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := audio.NewStorage(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.SynthesisConfig{ShardWords: 2, MaxConcurrent: 2}
	svc := NewService(st, blobs, &fakeSynth{}, &fakeAligner{}, cfg, logger)
	ctx := context.Background()

	seedBook(t, st, "book-1", "once upon a time")

	_, err = svc.SynthesizeBook(ctx, "book-1", "mom")
	require.NoError(t, err)

	// A recording replaces the voice's synthesized chunks with a single
	// full-book shard.
	shard, err := svc.IngestRecorded(ctx, "book-1", "mom", []byte("WAVDATA"))
	require.NoError(t, err)
	assert.Equal(t, 0, shard.ChunkIndex)
	assert.Equal(t, 3, shard.EndWordIndex)

	shards, err := st.ListShards(ctx, "book-1", "mom")
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.NoError(t, domain.CheckContinuity(shards))

	assert.False(t, blobs.Exists(audio.ObjectPath("book-1", "mom", 1)))
}

func TestSynthesizeBook_AllShardsFail(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{failOn: map[string]bool{"w0": true, "w2": true}}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3")

	run, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Failed())

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NarrationNeedsAttention, book.Status)
}

func TestSynthesizeBook_NoTokens(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, st.CreateBook(ctx, &domain.Book{
		ID: "book-1", Title: "Empty", Status: domain.NarrationPending,
		CreatedAt: now, UpdatedAt: now,
	}))

	_, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token stream")
}

func TestSynthesizeBook_RequiresVoice(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	seedBook(t, st, "book-1", "w0 w1")

	_, err := svc.SynthesizeBook(context.Background(), "book-1", "")
	require.Error(t, err)
}

func TestStartRun_ReturnsBeforeSettling(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3")

	run, err := svc.StartRun(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.ShardCount)

	// The run settles in the background; poll the stored record.
	require.Eventually(t, func() bool {
		stored, err := st.GetRun(ctx, run.ID)
		return err == nil && stored.Settled()
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Succeeded())
}

func TestIngestRecorded(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, &fakeAligner{offset: 2.0})
	ctx := context.Background()

	seedBook(t, st, "book-1", "once upon a time")

	shard, err := svc.IngestRecorded(ctx, "book-1", "mom", []byte("WAVDATA"))
	require.NoError(t, err)

	assert.Equal(t, 0, shard.ChunkIndex)
	assert.Equal(t, 0, shard.StartWordIndex)
	assert.Equal(t, 3, shard.EndWordIndex)
	require.Len(t, shard.Timings, 4)

	// Aligner times are rebased to shard-relative milliseconds.
	assert.Equal(t, int64(0), shard.Timings[0].TimeMs)
	assert.Equal(t, int64(400), shard.Timings[0].EndMs)
	assert.Equal(t, int64(1500), shard.Timings[3].TimeMs)

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NarrationReady, book.Status)
}

func TestIngestRecorded_NoAligner(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	seedBook(t, st, "book-1", "once upon a time")

	_, err := svc.IngestRecorded(context.Background(), "book-1", "mom", []byte("WAV"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestPurgeVoice(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3")
	_, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)

	count, err := svc.PurgeVoice(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	shards, err := st.ListShards(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Empty(t, shards)
}

func TestDeleteBook_Cascades(t *testing.T) {
	svc, st := setupService(t, &fakeSynth{}, nil)
	ctx := context.Background()

	seedBook(t, st, "book-1", "w0 w1 w2 w3")
	_, err := svc.SynthesizeBook(ctx, "book-1", "voice-1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, "book-1"))

	_, err = st.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, store.ErrBookNotFound)
	_, err = st.GetTokenStream(ctx, "book-1")
	assert.ErrorIs(t, err, store.ErrTokensNotFound)

	shards, err := st.ListShards(ctx, "book-1", "voice-1")
	require.NoError(t, err)
	assert.Empty(t, shards)

	runs, err := st.ListRunsForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
