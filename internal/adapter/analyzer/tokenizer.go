package analyzer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"ragchat/internal/port"
)

// WordsEncoding names the offline word tokenizer.
const WordsEncoding = "words"

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// New returns the tokenizer for the given encoding name.
// "words" selects WordTokenizer; anything else is looked up as a tiktoken encoding.
func New(encoding string) (port.Tokenizer, error) {
	switch encoding {
	case WordsEncoding:
		return NewWordTokenizer(), nil
	case "":
		encoding = DefaultEncoding
	}
	tok, err := NewBPETokenizer(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %q: %w", encoding, err)
	}
	return tok, nil
}

// WordTokenizer splits text on unicode word boundaries without any vocabulary.
// Each token is a run of leading whitespace followed by either a word
// (letters, digits, underscore) or a single other rune. Whitespace at the
// end of the text forms its own token.
type WordTokenizer struct{}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize splits text into tokens. Joining the tokens yields text.
func (t *WordTokenizer) Tokenize(text string) []string {
	var tokens []string

	start := 0
	for start < len(text) {
		pos := skipSpace(text, start)
		if pos == len(text) {
			tokens = append(tokens, text[start:])
			break
		}

		r, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
		if isWordRune(r) {
			for pos < len(text) {
				r, size = utf8.DecodeRuneInString(text[pos:])
				if !isWordRune(r) {
					break
				}
				pos += size
			}
		}

		tokens = append(tokens, text[start:pos])
		start = pos
	}

	return tokens
}

func (t *WordTokenizer) Name() string {
	return WordsEncoding
}

func skipSpace(text string, pos int) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

func isWordRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
