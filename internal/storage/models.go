package storage

import (
	"time"

	"groundchat/internal/citation"
)

// DocumentRecord is an ingested knowledge-base document.
type DocumentRecord struct {
	ID         string // UUID
	Filename   string
	Hash       string // SHA256 hex string of the content
	ChunkCount int
	CreatedAt  time.Time
}

// ChunkRecord is a chunk of a document, indexed for vector search.
type ChunkRecord struct {
	ID          string // UUID (same as Qdrant point ID)
	DocumentID  string // foreign key to documents.id
	ChunkIndex  int    // index within the document, starting at 0
	HeadingPath string // "# Heading1 > ## Heading2"
	Text        string
}

// TurnRecord is a processed assistant answer together with the sources it cites.
type TurnRecord struct {
	ID          string // UUID
	Question    string
	Answer      string // processed text in display form
	ListMode    bool
	KBSources   []citation.EvidenceItem
	WebSources  []citation.EvidenceItem
	Diagnostics citation.Diagnostics
	CreatedAt   time.Time
}
