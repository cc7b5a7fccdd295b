package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/readalong/narration-server/internal/domain"
)

const bookPrefix = "book:"

// CreateBook stores a new book. Returns ErrBookExists if the ID is taken.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}

	key := []byte(bookPrefix + book.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrBookExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var book domain.Book
	if err := s.get(bookPrefix+id, &book, ErrBookNotFound); err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook overwrites an existing book record.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	book.Touch()
	return s.set(bookPrefix+book.ID, book)
}

// ListBooks returns all books in key order.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var books []*domain.Book
	err := scanPrefix(s, bookPrefix, func(_ string, b *domain.Book) error {
		books = append(books, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// DeleteBook removes a book record. Derived data (token stream, shards,
// runs, progress) is the caller's responsibility; the narration service
// cascades those deletes.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(bookPrefix + id)
}
