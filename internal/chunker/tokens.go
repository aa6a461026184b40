package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used to measure chunk budgets.
const DefaultEncoding = "cl100k_base"

// TokenCounter measures text length in model tokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base".
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountTokens returns the number of BPE tokens in text.
func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// WordCounter approximates tokens as whitespace separated words.
// It needs no encoding files and is used offline and in tests.
type WordCounter struct{}

// CountTokens returns the number of whitespace separated words in text.
func (WordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}
