package store

import (
	"context"
	"fmt"

	"github.com/readalong/narration-server/internal/domain"
)

const tokensPrefix = "tokens:"

// SaveTokenStream persists a book's canonical token stream, replacing any
// existing stream. The dense-index invariant is enforced here so nothing
// downstream ever sees a gapped or duplicated word index.
func (s *Store) SaveTokenStream(ctx context.Context, bookID string, tokens domain.TokenStream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tokens.Validate(); err != nil {
		return fmt.Errorf("token stream invariant: %w", err)
	}
	return s.set(tokensPrefix+bookID, tokens)
}

// GetTokenStream retrieves a book's token stream.
func (s *Store) GetTokenStream(ctx context.Context, bookID string) (domain.TokenStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tokens domain.TokenStream
	if err := s.get(tokensPrefix+bookID, &tokens, ErrTokensNotFound); err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteTokenStream removes a book's token stream.
func (s *Store) DeleteTokenStream(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(tokensPrefix + bookID)
}
