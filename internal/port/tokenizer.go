package port

// Tokenizer splits text into tokens.
// Tokenize is lossless: joining the tokens reproduces the input exactly.
type Tokenizer interface {
	Tokenize(text string) []string

	Name() string
}
