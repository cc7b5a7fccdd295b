package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/narration-server/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func testBook(id string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:        id,
		Title:     "The Clever Fox",
		Status:    domain.NarrationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, testBook("book-1")))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "The Clever Fox", got.Title)
	assert.Equal(t, domain.NarrationPending, got.Status)
}

func TestCreateBook_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, testBook("book-1")))
	err := s.CreateBook(ctx, testBook("book-1"))
	assert.ErrorIs(t, err, ErrBookExists)
}

func TestGetBook_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetBook(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	book := testBook("book-1")
	require.NoError(t, s.CreateBook(ctx, book))

	book.Status = domain.NarrationReady
	require.NoError(t, s.UpdateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NarrationReady, got.Status)
}

func TestListBooks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, testBook("book-1")))
	require.NoError(t, s.CreateBook(ctx, testBook("book-2")))

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestDeleteBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, testBook("book-1")))
	require.NoError(t, s.DeleteBook(ctx, "book-1"))

	_, err := s.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestSaveAndGetTokenStream(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tokens := domain.Tokenize("Once upon a time")
	require.NoError(t, s.SaveTokenStream(ctx, "book-1", tokens))

	got, err := s.GetTokenStream(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.WordCount())
	assert.NoError(t, got.Validate())
}

func TestSaveTokenStream_RejectsInvalidStream(t *testing.T) {
	s := setupTestStore(t)

	two := 2
	broken := domain.TokenStream{
		{Text: "word", Type: domain.TokenWord, WordIndex: &two},
	}
	err := s.SaveTokenStream(context.Background(), "book-1", broken)
	require.Error(t, err)
}

func TestGetTokenStream_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetTokenStream(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokensNotFound)
}
