package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/narration-server/internal/domain"
)

func testRun(id, bookID string) *domain.NarrationRun {
	return &domain.NarrationRun{
		ID:         id,
		BookID:     bookID,
		VoiceID:    "voice-1",
		ShardCount: 3,
		StartedAt:  time.Now(),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, testRun("run-1", "book-1")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "book-1", got.BookID)
	assert.Equal(t, 3, got.ShardCount)
	assert.False(t, got.Settled())
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestUpdateRun_Settles(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", "book-1")
	require.NoError(t, s.CreateRun(ctx, run))

	now := time.Now()
	run.SettledAt = &now
	run.Results = []domain.ShardResult{
		{ChunkIndex: 0, OK: true, MarkCount: 50},
		{ChunkIndex: 1, OK: false, Error: "provider timeout"},
		{ChunkIndex: 2, OK: true, MarkCount: 48},
	}
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.Settled())
	assert.Equal(t, 2, got.Succeeded())
	assert.Equal(t, 1, got.Failed())
	assert.Equal(t, domain.NarrationPartial, got.Outcome())
}

func TestListRunsForBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, testRun("run-1", "book-1")))
	require.NoError(t, s.CreateRun(ctx, testRun("run-2", "book-1")))
	require.NoError(t, s.CreateRun(ctx, testRun("run-3", "book-2")))

	runs, err := s.ListRunsForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDeleteBookRuns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, testRun("run-1", "book-1")))
	require.NoError(t, s.CreateRun(ctx, testRun("run-2", "book-2")))

	require.NoError(t, s.DeleteBookRuns(ctx, "book-1"))

	_, err := s.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := s.ListRunsForBook(ctx, "book-2")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestUpsertAndGetReadingProgress(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	progress := &domain.ReadingProgress{
		ProfileID:       "profile-1",
		BookID:          "book-1",
		WordIndex:       120,
		PlaybackTimeSec: 95.5,
		PlaybackSpeed:   1.0,
	}
	require.NoError(t, s.UpsertReadingProgress(ctx, progress))

	got, err := s.GetReadingProgress(ctx, "profile-1", "book-1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.WordIndex)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGetReadingProgress_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetReadingProgress(context.Background(), "profile-1", "book-1")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestListProgressForProfile(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, bookID := range []string{"book-1", "book-2"} {
		require.NoError(t, s.UpsertReadingProgress(ctx, &domain.ReadingProgress{
			ProfileID: "profile-1",
			BookID:    bookID,
			WordIndex: 1,
		}))
	}
	require.NoError(t, s.UpsertReadingProgress(ctx, &domain.ReadingProgress{
		ProfileID: "profile-2",
		BookID:    "book-1",
		WordIndex: 1,
	}))

	entries, err := s.ListProgressForProfile(ctx, "profile-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDeleteReadingProgress(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReadingProgress(ctx, &domain.ReadingProgress{
		ProfileID: "profile-1",
		BookID:    "book-1",
	}))
	require.NoError(t, s.DeleteReadingProgress(ctx, "profile-1", "book-1"))

	_, err := s.GetReadingProgress(ctx, "profile-1", "book-1")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}
