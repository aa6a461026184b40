package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"compliance-rag/internal/chunker"
	"compliance-rag/internal/contextutil"
)

// Source types assigned to files that do not declare one.
const (
	SourceTypeMarkdown = "markdown"
	SourceTypeText     = "text"
)

// Loader reads corpus documents from disk.
//
// A corpus is either a single file or a directory walked recursively.
// JSON files hold an array of documents as produced by ingestion; markdown
// and text files become one document each, named by their path relative to
// the corpus root. Hidden files and directories are skipped.
type Loader struct {
	markdown *MarkdownRenderer
}

// NewLoader creates a corpus loader.
func NewLoader() *Loader {
	return &Loader{markdown: NewMarkdownRenderer()}
}

// Load returns the documents under root in lexical path order.
func (l *Loader) Load(ctx context.Context, root string) ([]chunker.Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access corpus %s: %w", root, err)
	}
	if !info.IsDir() {
		return l.loadFile(root, filepath.Base(root))
	}

	var docs []chunker.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}

		loaded, err := l.loadFile(path, filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "corpus loaded", "root", root, "documents", len(docs))
	return docs, nil
}

// loadFile reads one corpus file. Unsupported extensions yield nothing.
func (l *Loader) loadFile(path, name string) ([]chunker.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".md", ".markdown", ".txt":
	default:
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var docs []chunker.Document
	switch ext {
	case ".json":
		if err := json.Unmarshal(content, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode documents in %s: %w", path, err)
		}
	case ".md", ".markdown":
		title, plain := l.markdown.Render(content, name)
		docs = []chunker.Document{{
			Filename:   name,
			Title:      title,
			Content:    plain,
			SourceType: SourceTypeMarkdown,
		}}
	case ".txt":
		docs = []chunker.Document{{
			Filename:   name,
			Title:      extractTitleFromFilename(name),
			Content:    strings.ReplaceAll(string(content), "\r\n", "\n"),
			SourceType: SourceTypeText,
		}}
	}

	for i := range docs {
		fillCounts(&docs[i])
	}
	return docs, nil
}

// fillCounts sets word and character counts the source left empty.
func fillCounts(doc *chunker.Document) {
	if doc.WordCount == 0 {
		doc.WordCount = len(strings.Fields(doc.Content))
	}
	if doc.CharCount == 0 {
		doc.CharCount = utf8.RuneCountInString(doc.Content)
	}
}
