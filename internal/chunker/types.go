package chunker

import (
	"fmt"
	"maps"
	"strconv"
)

// Document is a raw corpus document handed over by ingestion.
type Document struct {
	ID         string            `json:"id,omitempty"`
	Filename   string            `json:"filename,omitempty"`
	Title      string            `json:"title,omitempty"`
	Content    string            `json:"content"`
	SourceType string            `json:"source_type,omitempty"`
	SourceURL  string            `json:"source,omitempty"`
	WordCount  int               `json:"word_count,omitempty"`
	CharCount  int               `json:"char_count,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SourceName returns the name chunks of the i-th document are attributed to:
// the filename, else the title, else doc_<i>.
func (d Document) SourceName(i int) string {
	if d.Filename != "" {
		return d.Filename
	}
	if d.Title != "" {
		return d.Title
	}
	return fmt.Sprintf("doc_%d", i)
}

// Metadata is the citation metadata carried by every chunk.
type Metadata struct {
	ChunkID     string            `json:"chunk_id"`
	SourceFile  string            `json:"source_file"`
	SourceType  string            `json:"source_type,omitempty"`
	DocIndex    int               `json:"doc_index"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Chunk is a token-bounded segment of a document, the unit of retrieval.
type Chunk struct {
	ID         string   `json:"chunk_id"`
	Content    string   `json:"content"`
	TokenCount int      `json:"token_count"`
	Metadata   Metadata `json:"metadata"`
}

// Payload flattens the metadata into a vector store payload.
// Extra keys are prefixed with "extra_" so they cannot shadow fixed fields.
func (m Metadata) Payload() map[string]any {
	payload := map[string]any{
		"chunk_id":     m.ChunkID,
		"source_file":  m.SourceFile,
		"doc_index":    int64(m.DocIndex),
		"chunk_index":  int64(m.ChunkIndex),
		"total_chunks": int64(m.TotalChunks),
	}
	if m.SourceType != "" {
		payload["source_type"] = m.SourceType
	}
	for k, v := range m.Extra {
		payload["extra_"+k] = v
	}
	return payload
}

// MetadataFromPayload rebuilds chunk metadata from a vector store payload.
// Missing fields stay at their zero values.
func MetadataFromPayload(payload map[string]any) Metadata {
	m := Metadata{
		ChunkID:     stringValue(payload["chunk_id"]),
		SourceFile:  stringValue(payload["source_file"]),
		SourceType:  stringValue(payload["source_type"]),
		DocIndex:    intValue(payload["doc_index"]),
		ChunkIndex:  intValue(payload["chunk_index"]),
		TotalChunks: intValue(payload["total_chunks"]),
	}
	for k, v := range payload {
		if len(k) > len("extra_") && k[:len("extra_")] == "extra_" {
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k[len("extra_"):]] = stringValue(v)
		}
	}
	return m
}

func (m Metadata) clone() Metadata {
	m.Extra = maps.Clone(m.Extra)
	return m
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}
