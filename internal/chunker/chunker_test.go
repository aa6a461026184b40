package chunker

import (
	"fmt"
	"strings"
	"testing"
)

// para builds a paragraph of n distinct words prefixed with name.
func para(name string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", name, i)
	}
	return strings.Join(words, " ")
}

func contents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestNew_DefaultSize(t *testing.T) {
	c := New(0, WordCounter{})
	if c.Size() != DefaultChunkSize {
		t.Errorf("Size() = %d, want %d", c.Size(), DefaultChunkSize)
	}
}

func TestChunker_Chunk(t *testing.T) {
	p1, p2, p3 := para("a", 50), para("b", 50), para("c", 50)
	s1, s2, s3 := para("d", 30), para("e", 30), para("f", 30)

	tests := []struct {
		name string
		size int
		text string
		want []string
	}{
		{
			name: "three 50-token paragraphs under an 80 budget",
			size: 80,
			text: strings.Join([]string{p1, p2, p3}, "\n\n"),
			want: []string{p1, p2, p3},
		},
		{
			name: "overlap carries last paragraph",
			size: 80,
			text: strings.Join([]string{s1, s2, s3}, "\n\n"),
			want: []string{s1 + "\n\n" + s2, s2 + "\n\n" + s3},
		},
		{
			name: "paragraph filling the budget exactly stays in buffer",
			size: 50,
			text: para("g", 25) + "\n\n" + para("h", 25),
			want: []string{para("g", 25) + "\n\n" + para("h", 25)},
		},
		{
			name: "empty paragraphs are skipped",
			size: 10,
			text: "\n\n   \n\nhello world\n\n\n\n",
			want: []string{"hello world"},
		},
		{
			name: "oversized paragraph splits on sentences",
			size: 10,
			text: "a b c d. e f g h. i j k l.",
			want: []string{"a b c d. e f g h.", "i j k l."},
		},
		{
			name: "trailing fragment without period is kept",
			size: 10,
			text: "a b c d. e f g h. i j k",
			want: []string{"a b c d. e f g h.", "i j k"},
		},
		{
			name: "oversized paragraph flushes pending buffer first",
			size: 10,
			text: "x y\n\na b c d. e f g h. i j k l.",
			want: []string{"x y", "a b c d. e f g h.", "i j k l."},
		},
		{
			name: "single oversized sentence is kept whole",
			size: 3,
			text: "one two three four five",
			want: []string{"one two three four five"},
		},
		{
			name: "empty text",
			size: 10,
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.size, WordCounter{})
			got := contents(c.Chunk(tt.text, Metadata{SourceFile: "doc.pdf"}))
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() returned %d chunks, want %d: %q", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunker_Chunk_SentenceBufferCarriesIntoNextParagraph(t *testing.T) {
	c := New(10, WordCounter{})
	text := "a b c d. e f g h. i j k\n\nm n"

	got := contents(c.Chunk(text, Metadata{}))
	want := []string{"a b c d. e f g h.", "i j k\n\nm n"}
	if len(got) != len(want) {
		t.Fatalf("Chunk() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunker_Chunk_Properties(t *testing.T) {
	const size = 40
	var paras []string
	lengths := []int{12, 25, 7, 33, 18, 3, 29, 14, 22, 9, 31, 16}
	for i, n := range lengths {
		paras = append(paras, para(fmt.Sprintf("p%d_", i), n))
	}
	text := strings.Join(paras, "\n\n")

	c := New(size, WordCounter{})
	chunks := c.Chunk(text, Metadata{})

	t.Run("size bound", func(t *testing.T) {
		var counter WordCounter
		for i, ch := range chunks {
			if ch.TokenCount > size {
				t.Errorf("chunk %d has %d tokens, budget %d", i, ch.TokenCount, size)
			}
			if n := counter.CountTokens(ch.Content); ch.TokenCount != n {
				t.Errorf("chunk %d TokenCount = %d, content has %d", i, ch.TokenCount, n)
			}
		}
	})

	t.Run("coverage", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, ch := range chunks {
			for _, p := range strings.Split(ch.Content, "\n\n") {
				seen[p] = true
			}
		}
		for i, p := range paras {
			if !seen[p] {
				t.Errorf("paragraph %d was dropped", i)
			}
		}
	})

	t.Run("overlap continuity", func(t *testing.T) {
		for i := 0; i+1 < len(chunks); i++ {
			prev := strings.Split(chunks[i].Content, "\n\n")
			next := strings.Split(chunks[i+1].Content, "\n\n")
			last := prev[len(prev)-1]
			if next[0] == last {
				continue
			}
			// Without overlap the pair must not have fit in the budget.
			if c.CountTokens(last+"\n\n"+next[0]) <= size {
				t.Errorf("chunks %d and %d lack overlap although the pair fits", i, i+1)
			}
		}
	})
}

func TestChunker_ProcessAll(t *testing.T) {
	c := New(5, WordCounter{})
	docs := []Document{
		{Filename: "osha_bloodborne.pdf", Content: "a b c\n\nd e f", SourceType: "pdf", Metadata: map[string]string{"agency": "OSHA"}},
		{Title: "Hand hygiene", Content: "g h"},
		{Content: "i j"},
		{Filename: "empty.pdf", Content: "\n\n"},
	}

	chunks := c.ProcessAll(docs)

	wantIDs := []string{
		"osha_bloodborne.pdf_chunk_0",
		"osha_bloodborne.pdf_chunk_1",
		"Hand hygiene_chunk_0",
		"doc_2_chunk_0",
	}
	if len(chunks) != len(wantIDs) {
		t.Fatalf("ProcessAll() returned %d chunks, want %d", len(chunks), len(wantIDs))
	}
	for i, want := range wantIDs {
		if chunks[i].ID != want || chunks[i].Metadata.ChunkID != want {
			t.Errorf("chunk %d id = %q/%q, want %q", i, chunks[i].ID, chunks[i].Metadata.ChunkID, want)
		}
	}

	first := chunks[0].Metadata
	if first.DocIndex != 0 || first.ChunkIndex != 0 || first.TotalChunks != 2 {
		t.Errorf("first chunk metadata = %+v", first)
	}
	if first.SourceType != "pdf" || first.Extra["agency"] != "OSHA" {
		t.Errorf("document metadata not carried: %+v", first)
	}
	if chunks[1].Metadata.ChunkIndex != 1 || chunks[1].Metadata.TotalChunks != 2 {
		t.Errorf("second chunk metadata = %+v", chunks[1].Metadata)
	}
	if chunks[3].Metadata.DocIndex != 2 || chunks[3].Metadata.SourceFile != "doc_2" {
		t.Errorf("fallback source metadata = %+v", chunks[3].Metadata)
	}

	// Chunks do not share metadata maps.
	chunks[0].Metadata.Extra["agency"] = "changed"
	if chunks[1].Metadata.Extra["agency"] != "OSHA" {
		t.Error("chunk metadata maps are shared")
	}
}

func TestChunker_ProcessAll_Deterministic(t *testing.T) {
	c := New(8, WordCounter{})
	docs := []Document{{Filename: "a.pdf", Content: para("x", 6) + "\n\n" + para("y", 6) + "\n\n" + para("z", 3)}}

	first := c.ProcessAll(docs)
	second := c.ProcessAll(docs)
	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Content != second[i].Content {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestMetadataFromPayload(t *testing.T) {
	meta := Metadata{
		ChunkID:     "hipaa.pdf_chunk_3",
		SourceFile:  "hipaa.pdf",
		SourceType:  "pdf",
		DocIndex:    4,
		ChunkIndex:  3,
		TotalChunks: 9,
		Extra:       map[string]string{"agency": "HHS"},
	}

	payload := meta.Payload()
	// Backends hand numbers back as int64 or float64.
	payload["doc_index"] = float64(4)

	got := MetadataFromPayload(payload)
	if got.ChunkID != meta.ChunkID || got.SourceFile != meta.SourceFile || got.SourceType != meta.SourceType {
		t.Errorf("MetadataFromPayload() = %+v, want %+v", got, meta)
	}
	if got.DocIndex != 4 || got.ChunkIndex != 3 || got.TotalChunks != 9 {
		t.Errorf("MetadataFromPayload() positions = %+v", got)
	}
	if got.Extra["agency"] != "HHS" {
		t.Errorf("MetadataFromPayload() extra = %v", got.Extra)
	}
}

func TestTiktokenCounter(t *testing.T) {
	counter, err := NewTiktokenCounter(DefaultEncoding)
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	if n := counter.CountTokens(""); n != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", n)
	}
	if n := counter.CountTokens("Report needlestick injuries immediately."); n <= 0 {
		t.Errorf("CountTokens() = %d, want > 0", n)
	}
}
