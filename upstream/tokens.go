package upstream

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is the tiktoken encoding used when none is configured.
const defaultEncoding = "cl100k_base"

// TokenCounter counts tokens with tiktoken. The encoding is initialized
// lazily because the first use may download encoding data; if that fails
// the counter falls back to a bytes/4 estimate instead of erroring every
// request.
type TokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
}

// NewTokenCounter creates a counter for the given tiktoken encoding name.
func NewTokenCounter(encoding string) *TokenCounter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &TokenCounter{encoding: encoding}
}

// Count returns the token count for text.
func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		// rough estimate: ~4 bytes per token for English text
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
