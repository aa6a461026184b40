package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"

	"compliance-rag/internal/chunker"
)

// ChunkerVersion identifies the chunking rules. Bump it when chunk
// boundaries change so index versions differ.
const ChunkerVersion = "v2.0"

// CoverageStats describes one index build.
type CoverageStats struct {
	// DocsProcessed is the number of documents loaded from the corpus.
	DocsProcessed int `json:"docs_processed"`
	// DocsWith0Chunks counts documents that produced no chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// ChunksEmbedded is the number of chunks written to the index.
	ChunksEmbedded int `json:"chunks_embedded"`
	// DocumentsRegistered is the number of new registry entries.
	DocumentsRegistered int             `json:"documents_registered"`
	ChunkTokenStats     ChunkTokenStats `json:"chunk_token_stats"`
	ChunkerVersion      string          `json:"chunker_version"`
	IndexVersion        string          `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// coverage computes build statistics for docs and the chunks cut from them.
func coverage(docs []chunker.Document, chunks []chunker.Chunk, embeddingModel string, chunkSize int) CoverageStats {
	perDoc := make(map[int]int, len(docs))
	tokenCounts := make([]int, 0, len(chunks))
	for _, c := range chunks {
		perDoc[c.Metadata.DocIndex]++
		tokenCounts = append(tokenCounts, c.TokenCount)
	}

	stats := CoverageStats{
		DocsProcessed:   len(docs),
		ChunksEmbedded:  len(chunks),
		ChunkTokenStats: computeTokenStats(tokenCounts),
		ChunkerVersion:  ChunkerVersion,
		IndexVersion:    indexVersion(embeddingModel, chunkSize),
	}
	for i := range docs {
		if perDoc[i] == 0 {
			stats.DocsWith0Chunks++
		}
	}
	return stats
}

// indexVersion hashes the chunker version, embedding model and chunk size
// into a 16 hex character build id.
func indexVersion(embeddingModel string, chunkSize int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d", ChunkerVersion, embeddingModel, chunkSize)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := slices.Clone(tokenCounts)
	slices.Sort(sorted)

	sum := 0
	for _, count := range sorted {
		sum += count
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := min(int(math.Ceil(float64(len(sorted))*0.95)), len(sorted)-1)

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
