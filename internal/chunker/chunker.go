// Package chunker splits raw compliance documents into token-bounded,
// citation-taggable chunks.
package chunker

import (
	"fmt"
	"strings"
)

// DefaultChunkSize is the target number of tokens per chunk.
const DefaultChunkSize = 500

const (
	paragraphSep = "\n\n"
	sentenceSep  = ". "
)

// Chunker packs paragraphs greedily under a token budget.
//
// When the next paragraph would overflow the budget the pending chunk is
// flushed and the new one is seeded with the last paragraph of the flushed
// chunk, provided the pair still fits. A paragraph that alone exceeds the
// budget is split on sentence boundaries and packed without overlap.
type Chunker struct {
	size    int
	counter TokenCounter
}

// New creates a Chunker. A non-positive size selects DefaultChunkSize.
func New(size int, counter TokenCounter) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size, counter: counter}
}

// Size returns the token budget per chunk.
func (c *Chunker) Size() int {
	return c.size
}

// CountTokens counts tokens with the chunker's counter.
func (c *Chunker) CountTokens(text string) int {
	return c.counter.CountTokens(text)
}

// Chunk splits text into chunks, each carrying a copy of meta.
// Index fields of meta are left for ProcessAll to fill in.
func (c *Chunker) Chunk(text string, meta Metadata) []Chunk {
	var (
		chunks []Chunk
		buf    []string
		cur    int
	)

	emit := func(content string) {
		chunks = append(chunks, Chunk{
			Content:    content,
			TokenCount: c.counter.CountTokens(content),
			Metadata:   meta.clone(),
		})
	}

	for _, para := range strings.Split(text, paragraphSep) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraTokens := c.counter.CountTokens(para)

		if paraTokens > c.size {
			if len(buf) > 0 {
				emit(strings.Join(buf, paragraphSep))
				buf, cur = nil, 0
			}
			// The sentence buffer is not flushed here; the next paragraph
			// packs against it.
			for _, sent := range strings.Split(para, sentenceSep) {
				sent = strings.TrimSpace(sent)
				if sent == "" {
					continue
				}
				sentTokens := c.counter.CountTokens(sent)
				if cur+sentTokens > c.size {
					if len(buf) > 0 {
						emit(joinSentences(buf))
					}
					buf, cur = []string{sent}, sentTokens
					continue
				}
				buf = append(buf, sent)
				cur += sentTokens
			}
			continue
		}

		if cur+paraTokens <= c.size {
			buf = append(buf, para)
			cur += paraTokens
			continue
		}

		if len(buf) == 0 {
			buf, cur = []string{para}, paraTokens
			continue
		}

		emit(strings.Join(buf, paragraphSep))
		last := buf[len(buf)-1]
		seeded := last + paragraphSep + para
		if seededTokens := c.counter.CountTokens(seeded); seededTokens <= c.size {
			buf, cur = []string{last, para}, seededTokens
		} else {
			buf, cur = []string{para}, paraTokens
		}
	}

	if len(buf) > 0 {
		emit(strings.Join(buf, paragraphSep))
	}

	return chunks
}

// ProcessAll chunks every document and tags each chunk with its document
// index, source file, position and a deterministic chunk id of the form
// "<source_file>_chunk_<index>".
func (c *Chunker) ProcessAll(docs []Document) []Chunk {
	var all []Chunk
	for i, doc := range docs {
		source := doc.SourceName(i)
		meta := Metadata{
			SourceFile: source,
			SourceType: doc.SourceType,
			DocIndex:   i,
			Extra:      doc.Metadata,
		}

		chunks := c.Chunk(doc.Content, meta)
		for j := range chunks {
			id := fmt.Sprintf("%s_chunk_%d", source, j)
			chunks[j].ID = id
			chunks[j].Metadata.ChunkID = id
			chunks[j].Metadata.ChunkIndex = j
			chunks[j].Metadata.TotalChunks = len(chunks)
		}
		all = append(all, chunks...)
	}
	return all
}

// joinSentences rebuilds sentence-packed text, restoring the terminal period
// consumed by the split unless the last sentence already carries one.
func joinSentences(sents []string) string {
	joined := strings.Join(sents, sentenceSep)
	if strings.HasSuffix(joined, ".") {
		return joined
	}
	return joined + "."
}
