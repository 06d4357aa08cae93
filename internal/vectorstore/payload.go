package vectorstore

import "fmt"

// Payload keys stored with every chunk point.
const (
	KeyDocumentID  = "document_id"
	KeyFilename    = "filename"
	KeyChunkIndex  = "chunk_index"
	KeyHeadingPath = "heading_path"
	KeyContent     = "content"
)

// ChunkPayload is the metadata of a knowledge-base chunk point.
type ChunkPayload struct {
	DocumentID  string
	Filename    string
	ChunkIndex  int
	HeadingPath string
	Content     string
}

// Meta converts the payload into point metadata.
func (p ChunkPayload) Meta() map[string]any {
	return map[string]any{
		KeyDocumentID:  p.DocumentID,
		KeyFilename:    p.Filename,
		KeyChunkIndex:  int64(p.ChunkIndex),
		KeyHeadingPath: p.HeadingPath,
		KeyContent:     p.Content,
	}
}

// ChunkPayloadFromMeta reads a chunk payload back from search metadata.
// document_id is required; the other keys default to their zero values.
func ChunkPayloadFromMeta(meta map[string]any) (ChunkPayload, error) {
	var p ChunkPayload
	id, ok := meta[KeyDocumentID].(string)
	if !ok || id == "" {
		return p, fmt.Errorf("payload missing %s", KeyDocumentID)
	}
	p.DocumentID = id
	p.Filename, _ = meta[KeyFilename].(string)
	p.HeadingPath, _ = meta[KeyHeadingPath].(string)
	p.Content, _ = meta[KeyContent].(string)

	switch v := meta[KeyChunkIndex].(type) {
	case int64:
		p.ChunkIndex = int(v)
	case int:
		p.ChunkIndex = v
	case float64:
		p.ChunkIndex = int(v)
	}
	return p, nil
}
