package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShard(chunk, start, end int, marks []TimingMark) *AudioShard {
	return &AudioShard{
		BookID:         "book-1",
		VoiceID:        "voice-1",
		ChunkIndex:     chunk,
		StartWordIndex: start,
		EndWordIndex:   end,
		Timings:        marks,
	}
}

func TestShardValidate_Valid(t *testing.T) {
	shard := testShard(0, 0, 2, []TimingMark{
		{AbsIndex: 0, TimeMs: 0, Value: "once", Type: MarkTypeWord},
		{AbsIndex: 1, TimeMs: 320, Value: "upon", Type: MarkTypeWord},
		{AbsIndex: 2, TimeMs: 700, Value: "a", Type: MarkTypeWord},
	})

	assert.NoError(t, shard.Validate())
}

func TestShardValidate_MarkOutsideRange(t *testing.T) {
	shard := testShard(0, 0, 1, []TimingMark{
		{AbsIndex: 2, TimeMs: 0, Type: MarkTypeWord},
	})

	err := shard.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside range")
}

func TestShardValidate_NonMonotonicTime(t *testing.T) {
	shard := testShard(0, 0, 2, []TimingMark{
		{AbsIndex: 0, TimeMs: 500, Type: MarkTypeWord},
		{AbsIndex: 1, TimeMs: 200, Type: MarkTypeWord},
	})

	require.Error(t, shard.Validate())
}

func TestShardValidate_DuplicateAbsIndex(t *testing.T) {
	shard := testShard(0, 0, 2, []TimingMark{
		{AbsIndex: 0, TimeMs: 0, Type: MarkTypeWord},
		{AbsIndex: 0, TimeMs: 100, Type: MarkTypeWord},
	})

	require.Error(t, shard.Validate())
}

func TestShardValidate_EmptyRange(t *testing.T) {
	shard := testShard(0, 5, 4, nil)
	require.Error(t, shard.Validate())
}

func TestOffsetForWord(t *testing.T) {
	shard := testShard(0, 10, 14, []TimingMark{
		{AbsIndex: 10, TimeMs: 0, Type: MarkTypeWord},
		{AbsIndex: 12, TimeMs: 800, Type: MarkTypeWord},
		{AbsIndex: 14, TimeMs: 1600, Type: MarkTypeWord},
	})

	assert.Equal(t, int64(0), shard.OffsetForWord(10))
	// Word 11 has no mark: greatest mark at or before it.
	assert.Equal(t, int64(0), shard.OffsetForWord(11))
	assert.Equal(t, int64(800), shard.OffsetForWord(12))
	assert.Equal(t, int64(800), shard.OffsetForWord(13))
	assert.Equal(t, int64(1600), shard.OffsetForWord(14))
}

func TestOffsetForWord_NoMarks(t *testing.T) {
	shard := testShard(0, 0, 4, nil)
	assert.Equal(t, int64(0), shard.OffsetForWord(3))
}

func TestCheckContinuity(t *testing.T) {
	shards := []*AudioShard{
		testShard(0, 0, 49, nil),
		testShard(1, 50, 99, nil),
		testShard(2, 100, 149, nil),
	}

	assert.NoError(t, CheckContinuity(shards))
}

func TestCheckContinuity_Gap(t *testing.T) {
	shards := []*AudioShard{
		testShard(0, 0, 49, nil),
		testShard(1, 51, 99, nil),
	}

	err := CheckContinuity(shards)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ends at word 49")
}

func TestCheckContinuity_Overlap(t *testing.T) {
	shards := []*AudioShard{
		testShard(0, 0, 49, nil),
		testShard(1, 49, 99, nil),
	}

	require.Error(t, CheckContinuity(shards))
}

func TestCheckContinuity_ChunkIndexGap(t *testing.T) {
	shards := []*AudioShard{
		testShard(0, 0, 49, nil),
		testShard(2, 50, 99, nil),
	}

	require.Error(t, CheckContinuity(shards))
}

func TestFindShard(t *testing.T) {
	shards := []*AudioShard{
		testShard(0, 0, 49, nil),
		testShard(1, 50, 99, nil),
		testShard(2, 100, 149, nil),
	}

	assert.Equal(t, 2, FindShard(shards, 120).ChunkIndex)
	assert.Equal(t, 0, FindShard(shards, 0).ChunkIndex)
	assert.Equal(t, 1, FindShard(shards, 50).ChunkIndex)
	assert.Nil(t, FindShard(shards, 150))
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name    string
		results []ShardResult
		want    NarrationStatus
	}{
		{
			name:    "all succeeded",
			results: []ShardResult{{OK: true}, {OK: true}},
			want:    NarrationReady,
		},
		{
			name:    "all failed",
			results: []ShardResult{{OK: false}, {OK: false}},
			want:    NarrationNeedsAttention,
		},
		{
			name:    "mixed",
			results: []ShardResult{{OK: true}, {OK: false}, {OK: true}},
			want:    NarrationPartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &NarrationRun{Results: tt.results}
			assert.Equal(t, tt.want, run.Outcome())
		})
	}
}
