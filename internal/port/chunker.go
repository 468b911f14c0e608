package port

// Chunker splits document text into bounded-size windows.
type Chunker interface {
	Chunk(text string) []string
}
