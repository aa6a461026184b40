package indexer

import "testing"

func TestMarkdownRenderer_Render(t *testing.T) {
	r := NewMarkdownRenderer()

	tests := []struct {
		name      string
		content   string
		filename  string
		wantTitle string
		wantText  string
	}{
		{
			name:      "empty content uses filename",
			content:   "",
			filename:  "hand_hygiene-policy.md",
			wantTitle: "Hand Hygiene Policy",
			wantText:  "",
		},
		{
			name:      "headings and paragraphs become blocks",
			content:   "# Bloodborne Pathogens\n\nWear gloves when\nhandling specimens.\n\n## Exposure\n\nReport **immediately**.",
			filename:  "bbp.md",
			wantTitle: "Bloodborne Pathogens",
			wantText:  "Bloodborne Pathogens\n\nWear gloves when handling specimens.\n\nExposure\n\nReport immediately.",
		},
		{
			name:      "h2 title when no h1",
			content:   "## Fire Safety\n\nKnow your exits.",
			filename:  "fire.md",
			wantTitle: "Fire Safety",
			wantText:  "Fire Safety\n\nKnow your exits.",
		},
		{
			name:      "list items stay in one block",
			content:   "Steps:\n\n- Wash hands\n- Dry hands\n",
			filename:  "steps.md",
			wantTitle: "Steps",
			wantText:  "Steps:\n\n- Wash hands\n- Dry hands",
		},
		{
			name:      "tables render rows with pipes",
			content:   "| Agent | Action |\n|---|---|\n| HIV | Report |\n",
			filename:  "table.md",
			wantTitle: "Table",
			wantText:  "Agent | Action\nHIV | Report",
		},
		{
			name:      "code blocks keep lines",
			content:   "```\nline one\nline two\n```\n",
			filename:  "code.md",
			wantTitle: "Code",
			wantText:  "line one\nline two",
		},
		{
			name:      "blockquotes are flattened and breaks dropped",
			content:   "> Quoted rule.\n\n---\n\nAfter.",
			filename:  "quote.md",
			wantTitle: "Quote",
			wantText:  "Quoted rule.\n\nAfter.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, text := r.Render([]byte(tt.content), tt.filename)
			if title != tt.wantTitle {
				t.Errorf("Render() title = %q, want %q", title, tt.wantTitle)
			}
			if text != tt.wantText {
				t.Errorf("Render() text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestExtractTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"simple.md", "Simple"},
		{"dir/osha_bloodborne.txt", "Osha Bloodborne"},
		{"already Title.md", "Already Title"},
		{"noext", "Noext"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractTitleFromFilename(tt.filename); got != tt.want {
				t.Errorf("extractTitleFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
