package store

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/readalong/narration-server/internal/domain"
)

const (
	runPrefix       = "run:"
	runByBookPrefix = "run:idx:book:"
)

// CreateRun stores a narration run and its book index atomically.
func (s *Store) CreateRun(ctx context.Context, run *domain.NarrationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runPrefix+run.ID), data); err != nil {
			return fmt.Errorf("set run: %w", err)
		}

		// Index: by book
		bookIdx := runByBookPrefix + run.BookID + ":" + run.ID
		if err := txn.Set([]byte(bookIdx), []byte(run.ID)); err != nil {
			return fmt.Errorf("set book index: %w", err)
		}
		return nil
	})
}

// UpdateRun overwrites a run record (used when the run settles).
func (s *Store) UpdateRun(ctx context.Context, run *domain.NarrationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set(runPrefix+run.ID, run)
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.NarrationRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var run domain.NarrationRun
	if err := s.get(runPrefix+id, &run, ErrRunNotFound); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRunsForBook retrieves all runs for a book.
func (s *Store) ListRunsForBook(ctx context.Context, bookID string) ([]*domain.NarrationRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := runByBookPrefix + bookID + ":"

	var runs []*domain.NarrationRun
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		var runIDs []string
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				runIDs = append(runIDs, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}

		// Batch fetch in the same transaction (no N+1).
		runs = make([]*domain.NarrationRun, 0, len(runIDs))
		for _, id := range runIDs {
			item, err := txn.Get([]byte(runPrefix + id))
			if err != nil {
				continue // Skip missing runs
			}

			var run domain.NarrationRun
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				continue // Skip corrupt runs
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteBookRuns removes every run record and index entry for a book.
func (s *Store) DeleteBookRuns(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runs, err := s.ListRunsForBook(ctx, bookID)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := s.delete(runPrefix + run.ID); err != nil {
			return err
		}
	}
	_, err = s.deletePrefix(runByBookPrefix + bookID + ":")
	return err
}
