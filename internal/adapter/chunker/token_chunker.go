package chunker

import (
	"strings"

	"ragchat/internal/port"
)

// DefaultChunkTokens is the window size used when none is configured.
const DefaultChunkTokens = 500

// TokenChunker partitions a token stream into fixed-size, non-overlapping windows.
type TokenChunker struct {
	maxTokens int
	tokenizer port.Tokenizer
}

func NewTokenChunker(maxTokens int, tokenizer port.Tokenizer) *TokenChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	return &TokenChunker{
		maxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

// Chunk splits text using the configured window size.
func (c *TokenChunker) Chunk(text string) []string {
	return c.Split(text, c.maxTokens)
}

// Split groups the tokens of text into windows of exactly size tokens, the
// last window holding the remainder, and decodes each window back to text.
// Text without tokens yields no windows.
func (c *TokenChunker) Split(text string, size int) []string {
	if size <= 0 {
		size = c.maxTokens
	}

	tokens := c.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], ""))
	}

	return chunks
}

// Size returns the configured window size in tokens.
func (c *TokenChunker) Size() int {
	return c.maxTokens
}
