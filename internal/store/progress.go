package store

import (
	"context"
	"time"

	"github.com/readalong/narration-server/internal/domain"
)

const progressPrefix = "progress:"

// UpsertReadingProgress creates or updates server-side reading progress.
func (s *Store) UpsertReadingProgress(ctx context.Context, progress *domain.ReadingProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	progress.UpdatedAt = time.Now()
	key := progressPrefix + domain.ProgressID(progress.ProfileID, progress.BookID)
	return s.set(key, progress)
}

// GetReadingProgress retrieves reading progress for a profile+book.
func (s *Store) GetReadingProgress(ctx context.Context, profileID, bookID string) (*domain.ReadingProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var progress domain.ReadingProgress
	key := progressPrefix + domain.ProgressID(profileID, bookID)
	if err := s.get(key, &progress, ErrProgressNotFound); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListProgressForProfile returns all reading progress records for a profile.
func (s *Store) ListProgressForProfile(ctx context.Context, profileID string) ([]*domain.ReadingProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*domain.ReadingProgress
	err := scanPrefix(s, progressPrefix+profileID+":", func(_ string, p *domain.ReadingProgress) error {
		records = append(records, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteReadingProgress removes reading progress for a profile+book.
func (s *Store) DeleteReadingProgress(ctx context.Context, profileID, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(progressPrefix + domain.ProgressID(profileID, bookID))
}
