package analyzer

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Rank files are compiled in so loading an encoding never touches the network
// or the data-gym cache directory.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// BPETokenizer tokenizes with a tiktoken byte-pair encoding.
type BPETokenizer struct {
	enc  *tiktoken.Tiktoken
	name string
}

func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &BPETokenizer{enc: enc, name: encoding}, nil
}

// Tokenize encodes text and decodes every token back on its own.
// A token ending inside a multi-byte rune is merged with the tokens that
// complete it, so every token is whole runes and windows of tokens never
// split a character.
func (t *BPETokenizer) Tokenize(text string) []string {
	ids := t.enc.Encode(text, nil, nil)
	tokens := make([]string, 0, len(ids))

	var pending strings.Builder
	for _, id := range ids {
		pending.WriteString(t.enc.Decode([]int{id}))
		if partialRune(pending.String()) {
			continue
		}
		tokens = append(tokens, pending.String())
		pending.Reset()
	}
	if pending.Len() > 0 {
		tokens = append(tokens, pending.String())
	}
	return tokens
}

func (t *BPETokenizer) Name() string {
	return t.name
}

// partialRune reports whether s ends with the leading bytes of a multi-byte
// rune whose remaining bytes are missing.
func partialRune(s string) bool {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			return !utf8.FullRuneInString(s[i:])
		}
	}
	return false
}
