package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/readalong/narration-server/internal/align"
	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/domain"
	domainerrors "github.com/readalong/narration-server/internal/errors"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/store"
	"github.com/readalong/narration-server/internal/tts"
)

// Service orchestrates narration synthesis runs and the recorded-narration
// ingest path.
type Service struct {
	store   *store.Store
	blobs   *audio.Storage
	synth   tts.Synthesizer
	aligner align.Aligner
	cfg     config.SynthesisConfig
	logger  *slog.Logger
}

// NewService creates a narration service. The aligner may be nil when the
// recorded-narration path is disabled.
func NewService(
	st *store.Store,
	blobs *audio.Storage,
	synth tts.Synthesizer,
	aligner align.Aligner,
	cfg config.SynthesisConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   st,
		blobs:   blobs,
		synth:   synth,
		aligner: aligner,
		cfg:     cfg,
		logger:  logger,
	}
}

// StartRun plans a synthesis run and executes it in the background,
// returning the run record immediately. The execution context is detached
// deliberately: an abandoned request must not cancel in-flight shard
// tasks, whose writes are idempotent upserts keyed by shard identity.
func (s *Service) StartRun(ctx context.Context, bookID, voiceID string) (*domain.NarrationRun, error) {
	book, tokens, run, plan, err := s.prepareRun(ctx, bookID, voiceID)
	if err != nil {
		return nil, err
	}

	go s.executeRun(context.Background(), book, tokens, run, plan)

	return run, nil
}

// SynthesizeBook runs a full synthesis run synchronously and returns the
// settled run.
func (s *Service) SynthesizeBook(ctx context.Context, bookID, voiceID string) (*domain.NarrationRun, error) {
	book, tokens, run, plan, err := s.prepareRun(ctx, bookID, voiceID)
	if err != nil {
		return nil, err
	}

	s.executeRun(ctx, book, tokens, run, plan)
	return run, nil
}

// prepareRun loads the book and token stream, plans shard ranges, persists
// the run record, and flips the book to processing.
func (s *Service) prepareRun(ctx context.Context, bookID, voiceID string) (*domain.Book, domain.TokenStream, *domain.NarrationRun, []WordRange, error) {
	if voiceID == "" {
		return nil, nil, nil, nil, fmt.Errorf("voice ID is required")
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	tokens, err := s.store.GetTokenStream(ctx, bookID)
	if errors.Is(err, store.ErrTokensNotFound) {
		// Distinct from the book 404: the book exists but cannot be
		// narrated until its text is uploaded.
		return nil, nil, nil, nil, domainerrors.Conflictf("book %s has no token stream; upload text first", bookID)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	plan, err := PlanShards(tokens, s.cfg.ShardWords)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("plan shards: %w", err)
	}

	run := &domain.NarrationRun{
		ID:         uuid.NewString(),
		BookID:     bookID,
		VoiceID:    voiceID,
		ShardCount: len(plan),
		StartedAt:  time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create run: %w", err)
	}

	book.Status = domain.NarrationProcessing
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.Info("starting narration run",
		"run_id", run.ID,
		"book_id", bookID,
		"voice_id", voiceID,
		"shards", len(plan),
	)

	return book, tokens, run, plan, nil
}

// executeRun synthesizes every planned shard and settles the run. Shard
// tasks run concurrently under a bounded group used purely as a join
// barrier: each task records its outcome in its own slot and returns nil,
// so one shard's failure never cancels its siblings.
func (s *Service) executeRun(ctx context.Context, book *domain.Book, tokens domain.TokenStream, run *domain.NarrationRun, plan []WordRange) {
	// A run replaces the whole (book, voice) partition. Chunks from an
	// earlier plan can overlap the new word ranges, so stale records and
	// blobs go first; upserts then repopulate the partition.
	if _, _, err := s.store.DeleteVoiceShards(ctx, book.ID, run.VoiceID); err != nil {
		s.logger.Error("failed to purge stale shards before run",
			"run_id", run.ID, "book_id", book.ID, "voice_id", run.VoiceID, "error", err)
	}
	if err := s.blobs.DeleteVoice(book.ID, run.VoiceID); err != nil {
		s.logger.Error("failed to purge stale audio before run",
			"run_id", run.ID, "book_id", book.ID, "voice_id", run.VoiceID, "error", err)
	}

	results := make([]domain.ShardResult, len(plan))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for i, wr := range plan {
		g.Go(func() error {
			results[i] = s.synthesizeShard(ctx, tokens, run.VoiceID, book.ID, wr)
			return nil
		})
	}
	// The error is always nil; Wait is the barrier every shard settles at
	// before book status flips.
	_ = g.Wait()

	run.Results = results
	now := time.Now()
	run.SettledAt = &now
	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.logger.Error("failed to settle narration run", "run_id", run.ID, "error", err)
	}

	book.Status = run.Outcome()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		s.logger.Error("failed to update book status", "book_id", book.ID, "error", err)
	}

	s.logger.Info("narration run settled",
		"run_id", run.ID,
		"book_id", book.ID,
		"succeeded", run.Succeeded(),
		"failed", run.Failed(),
		"status", book.Status,
	)
}

// synthesizeShard synthesizes one word range: TTS call, mark attachment,
// blob write, then the durable shard record. The blob is written first so
// no record ever references an unwritten audio object.
func (s *Service) synthesizeShard(ctx context.Context, tokens domain.TokenStream, voiceID, bookID string, wr WordRange) domain.ShardResult {
	result := domain.ShardResult{
		ChunkIndex:     wr.ChunkIndex,
		StartWordIndex: wr.StartWordIndex,
		EndWordIndex:   wr.EndWordIndex,
	}

	text := tokens.Text(wr.StartWordIndex, wr.EndWordIndex)
	words := tokens.Words(wr.StartWordIndex, wr.EndWordIndex)

	res, err := s.synth.Synthesize(ctx, voiceID, text)
	if err != nil {
		s.logger.Error("shard synthesis failed",
			"book_id", bookID,
			"voice_id", voiceID,
			"chunk", wr.ChunkIndex,
			"error", err,
		)
		result.Error = err.Error()
		return result
	}

	// One synthesis call per shard, so provider time is already relative
	// to the shard's audio start.
	marks, mismatch := AttachMarks(words, wr.StartWordIndex, res.Marks, 0)
	if mismatch {
		s.logger.Warn("speech mark count mismatch",
			"book_id", bookID,
			"chunk", wr.ChunkIndex,
			"words", len(words),
			"marks", len(res.Marks),
			"attached", len(marks),
		)
	}

	relPath := audio.ObjectPath(bookID, voiceID, wr.ChunkIndex)
	if err := s.blobs.Save(relPath, res.Audio); err != nil {
		result.Error = fmt.Sprintf("save audio: %v", err)
		return result
	}

	shard := &domain.AudioShard{
		BookID:         bookID,
		VoiceID:        voiceID,
		ChunkIndex:     wr.ChunkIndex,
		StartWordIndex: wr.StartWordIndex,
		EndWordIndex:   wr.EndWordIndex,
		AudioPath:      relPath,
		Timings:        marks,
		CreatedAt:      time.Now(),
	}
	if err := s.store.UpsertShard(ctx, shard); err != nil {
		result.Error = fmt.Sprintf("store shard: %v", err)
		return result
	}

	result.OK = true
	result.MarkCount = len(marks)
	return result
}

// IngestRecorded runs the forced-alignment path for user-recorded
// narration: the whole recording becomes a single shard covering the full
// book, with marks derived by the external aligner.
func (s *Service) IngestRecorded(ctx context.Context, bookID, voiceID string, audioData []byte) (*domain.AudioShard, error) {
	if s.aligner == nil {
		return nil, fmt.Errorf("forced alignment is not configured")
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.store.GetTokenStream(ctx, bookID)
	if err != nil {
		return nil, err
	}
	wordCount := tokens.WordCount()
	if wordCount == 0 {
		return nil, fmt.Errorf("book %s has no words to align", bookID)
	}

	// The recording becomes the voice's only shard; synthesized chunks
	// left in the partition would overlap its full-book range.
	if _, _, err := s.store.DeleteVoiceShards(ctx, bookID, voiceID); err != nil {
		return nil, fmt.Errorf("purge voice shards: %w", err)
	}
	if err := s.blobs.DeleteVoice(bookID, voiceID); err != nil {
		return nil, fmt.Errorf("purge voice audio: %w", err)
	}

	relPath := audio.ObjectPath(bookID, voiceID, 0)
	if err := s.blobs.Save(relPath, audioData); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}

	transcript := tokens.Text(0, wordCount-1)
	alignment, err := s.aligner.Align(ctx, s.blobs.FullPath(relPath), transcript)
	if err != nil {
		return nil, fmt.Errorf("align recording: %w", err)
	}

	marks, dropped := align.ToTimingMarks(alignment, 0)
	if dropped > 0 {
		s.logger.Warn("dropped malformed alignment entries",
			"book_id", bookID,
			"voice_id", voiceID,
			"dropped", dropped,
			"kept", len(marks),
		)
	}

	shard := &domain.AudioShard{
		BookID:         bookID,
		VoiceID:        voiceID,
		ChunkIndex:     0,
		StartWordIndex: 0,
		EndWordIndex:   wordCount - 1,
		AudioPath:      relPath,
		Timings:        marks,
		CreatedAt:      time.Now(),
	}
	if err := s.store.UpsertShard(ctx, shard); err != nil {
		return nil, fmt.Errorf("store shard: %w", err)
	}

	if book.Status == domain.NarrationPending {
		book.Status = domain.NarrationReady
		if err := s.store.UpdateBook(ctx, book); err != nil {
			s.logger.Warn("failed to update book status after ingest", "book_id", bookID, "error", err)
		}
	}

	s.logger.Info("ingested recorded narration",
		"book_id", bookID,
		"voice_id", voiceID,
		"marks", len(marks),
	)

	return shard, nil
}

// PurgeVoice removes a stale voice's entire shard partition: durable
// records first, then the audio blobs, so no surviving record ever points
// at a missing blob.
func (s *Service) PurgeVoice(ctx context.Context, bookID, voiceID string) (int, error) {
	_, count, err := s.store.DeleteVoiceShards(ctx, bookID, voiceID)
	if err != nil {
		return 0, fmt.Errorf("delete shards: %w", err)
	}

	if err := s.blobs.DeleteVoice(bookID, voiceID); err != nil {
		return count, fmt.Errorf("delete audio: %w", err)
	}

	s.logger.Info("purged voice", "book_id", bookID, "voice_id", voiceID, "shards", count)
	return count, nil
}

// DeleteBook cascades a book delete across its token stream, shards, run
// records, and audio blobs.
func (s *Service) DeleteBook(ctx context.Context, bookID string) error {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return err
	}

	if _, err := s.store.DeleteBookShards(ctx, bookID); err != nil {
		return fmt.Errorf("delete shards: %w", err)
	}
	if err := s.store.DeleteBookRuns(ctx, bookID); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}
	if err := s.store.DeleteTokenStream(ctx, bookID); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if err := s.blobs.DeleteBook(bookID); err != nil {
		return fmt.Errorf("delete audio: %w", err)
	}

	s.logger.Info("deleted book", "book_id", bookID)
	return nil
}
