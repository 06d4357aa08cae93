package indexer

// Chunk is a retrievable piece of a document.
type Chunk struct {
	Index       int    // position within the document, starting at 0
	HeadingPath string // "# Heading1 > ## Heading2"
	Text        string
}
