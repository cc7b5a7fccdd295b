package store

import "github.com/readalong/narration-server/internal/errors"

// Sentinel errors for store operations. All are domain errors so handlers
// can map them to HTTP statuses with errors.Is.
var (
	ErrBookNotFound     = errors.NotFound("book not found")
	ErrBookExists       = errors.AlreadyExists("book already exists")
	ErrTokensNotFound   = errors.NotFound("token stream not found")
	ErrShardNotFound    = errors.NotFound("audio shard not found")
	ErrRunNotFound      = errors.NotFound("narration run not found")
	ErrProgressNotFound = errors.NotFound("reading progress not found")
)
