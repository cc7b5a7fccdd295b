// Package narration implements the synthesis pipeline that turns a book's
// token stream into audio shards with word-level timing marks.
package narration

import (
	"fmt"

	"github.com/readalong/narration-server/internal/domain"
)

// WordRange is one planned shard: a closed word-index range and its chunk
// position within the (book, voice) partition.
type WordRange struct {
	ChunkIndex     int
	StartWordIndex int
	EndWordIndex   int
}

// PlanShards partitions a token stream into contiguous word ranges of at
// most shardWords words each. Ranges abut exactly by construction, so the
// continuity invariant holds for any shard set synthesized from one plan.
func PlanShards(tokens domain.TokenStream, shardWords int) ([]WordRange, error) {
	if shardWords < 1 {
		return nil, fmt.Errorf("shard word count must be positive, got %d", shardWords)
	}
	if err := tokens.Validate(); err != nil {
		return nil, fmt.Errorf("token stream invariant: %w", err)
	}

	total := tokens.WordCount()
	if total == 0 {
		return nil, fmt.Errorf("token stream has no words")
	}

	var ranges []WordRange
	for start := 0; start < total; start += shardWords {
		end := min(start+shardWords-1, total-1)
		ranges = append(ranges, WordRange{
			ChunkIndex:     len(ranges),
			StartWordIndex: start,
			EndWordIndex:   end,
		})
	}
	return ranges, nil
}
