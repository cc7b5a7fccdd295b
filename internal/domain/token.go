package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType classifies a lexical token. The short codes are the persisted
// wire form shared with every client.
type TokenType string

// Token types.
const (
	TokenWord        TokenType = "w"
	TokenSpace       TokenType = "s"
	TokenPunctuation TokenType = "p"
)

// Token is one lexical unit of a book's text. Only word tokens carry a
// WordIndex; the index sequence over a book's word tokens is dense,
// zero-based, and strictly increasing.
type Token struct {
	Text      string    `json:"t"`
	Type      TokenType `json:"type"`
	WordIndex *int      `json:"i,omitempty"`
}

// TokenStream is the canonical tokenized representation of a book's text.
// It is immutable once generated; regenerating a book's text invalidates
// all derived shards.
type TokenStream []Token

// Tokenize splits raw story text into a token stream satisfying the dense
// word-index invariant. Runs of letters/digits (plus in-word apostrophes
// and hyphens) become word tokens, runs of whitespace become space tokens,
// and everything else becomes punctuation tokens.
func Tokenize(text string) TokenStream {
	var stream TokenStream
	wordIndex := 0

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			stream = append(stream, Token{Text: string(runes[i:j]), Type: TokenSpace})
			i = j
		case isWordRune(r):
			j := i
			for j < len(runes) && (isWordRune(runes[j]) || isWordJoiner(runes, j)) {
				j++
			}
			idx := wordIndex
			stream = append(stream, Token{Text: string(runes[i:j]), Type: TokenWord, WordIndex: &idx})
			wordIndex++
			i = j
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !isWordRune(runes[j]) {
				j++
			}
			stream = append(stream, Token{Text: string(runes[i:j]), Type: TokenPunctuation})
			i = j
		}
	}

	return stream
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isWordJoiner reports whether the rune at position j joins two word runes,
// keeping contractions ("don't") and hyphenations ("read-along") as single
// word tokens.
func isWordJoiner(runes []rune, j int) bool {
	if runes[j] != '\'' && runes[j] != '’' && runes[j] != '-' {
		return false
	}
	return j > 0 && isWordRune(runes[j-1]) && j+1 < len(runes) && isWordRune(runes[j+1])
}

// WordCount returns the number of word tokens in the stream.
func (ts TokenStream) WordCount() int {
	n := 0
	for i := range ts {
		if ts[i].Type == TokenWord {
			n++
		}
	}
	return n
}

// Validate checks the dense-index invariant: the word-token indices are
// exactly 0..N-1 in order, with no gaps or duplicates, and no non-word
// token carries an index.
func (ts TokenStream) Validate() error {
	next := 0
	for i := range ts {
		tok := &ts[i]
		if tok.Type != TokenWord {
			if tok.WordIndex != nil {
				return fmt.Errorf("token %d: %s token carries word index %d", i, tok.Type, *tok.WordIndex)
			}
			continue
		}
		if tok.WordIndex == nil {
			return fmt.Errorf("token %d: word token %q missing word index", i, tok.Text)
		}
		if *tok.WordIndex != next {
			return fmt.Errorf("token %d: word index %d, expected %d", i, *tok.WordIndex, next)
		}
		next++
	}
	return nil
}

// Words returns the word-token texts for the closed index range
// [startWordIndex, endWordIndex], in stream order. This is the exact
// sequence a synthesis request is built from, so mark attachment can walk
// it in lockstep with the provider's speech marks.
func (ts TokenStream) Words(startWordIndex, endWordIndex int) []string {
	var words []string
	for i := range ts {
		tok := &ts[i]
		if tok.Type != TokenWord || tok.WordIndex == nil {
			continue
		}
		if *tok.WordIndex < startWordIndex {
			continue
		}
		if *tok.WordIndex > endWordIndex {
			break
		}
		words = append(words, tok.Text)
	}
	return words
}

// Text reconstructs the plain text covering the closed word range
// [startWordIndex, endWordIndex], including interior spaces and
// punctuation. Leading non-word tokens are excluded so synthesis starts on
// the range's first word; punctuation trailing the last word is kept so
// sentence-final prosody survives sharding.
func (ts TokenStream) Text(startWordIndex, endWordIndex int) string {
	var b strings.Builder
	started := false
	for i := range ts {
		tok := &ts[i]
		if tok.Type == TokenWord && tok.WordIndex != nil {
			if *tok.WordIndex > endWordIndex {
				break
			}
			if *tok.WordIndex >= startWordIndex {
				started = true
			}
		}
		if started {
			b.WriteString(tok.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
