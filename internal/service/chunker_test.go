package service

import (
	"strings"
	"testing"
)

func TestChunkerSplitBounds(t *testing.T) {
	testCases := []struct {
		name       string
		words      int
		maxTokens  int
		wantChunks int
	}{
		{name: "empty input", words: 0, maxTokens: 10, wantChunks: 0},
		{name: "single partial chunk", words: 7, maxTokens: 10, wantChunks: 1},
		{name: "exact fit", words: 20, maxTokens: 10, wantChunks: 2},
		{name: "remainder chunk", words: 25, maxTokens: 10, wantChunks: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.TrimSpace(strings.Repeat("word ", tc.words))
			spans := NewChunker(tc.maxTokens, 0).Split(text)

			if len(spans) != tc.wantChunks {
				t.Fatalf("chunk count: got %d, want %d", len(spans), tc.wantChunks)
			}
			for i, span := range spans {
				if span.TokenCount > tc.maxTokens {
					t.Errorf("chunk %d exceeds budget: %d > %d", i, span.TokenCount, tc.maxTokens)
				}
			}
		})
	}
}

// With zero overlap the chunks partition the input: joining them back
// must reproduce the original token sequence, no text duplicated or lost.
func TestChunkerSplitConservesText(t *testing.T) {
	original := "the quick brown fox jumps over the lazy dog again and again until done"
	spans := NewChunker(5, 0).Split(original)

	var parts []string
	total := 0
	for _, span := range spans {
		parts = append(parts, span.Text)
		total += span.TokenCount
	}
	rejoined := strings.Join(parts, " ")

	if rejoined != original {
		t.Errorf("rejoined text differs:\n got: %q\nwant: %q", rejoined, original)
	}
	if want := len(strings.Fields(original)); total != want {
		t.Errorf("token total: got %d, want %d", total, want)
	}
	if len(rejoined) > len(original) {
		t.Errorf("chunk text grew past the original: %d > %d", len(rejoined), len(original))
	}
}

func TestChunkerOverlapRepeatsTokens(t *testing.T) {
	spans := NewChunker(4, 2).Split("a b c d e f g h")

	if len(spans) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(spans))
	}
	// Each chunk after the first starts with the last two tokens of the
	// previous one.
	for i := 1; i < len(spans); i++ {
		prev := strings.Fields(spans[i-1].Text)
		cur := strings.Fields(spans[i].Text)
		tail := strings.Join(prev[len(prev)-2:], " ")
		head := strings.Join(cur[:min(2, len(cur))], " ")
		if tail != head {
			t.Errorf("chunk %d: overlap mismatch, tail %q vs head %q", i, tail, head)
		}
	}
}

func TestChunkerClampsBadConfig(t *testing.T) {
	// Overlap >= budget would loop forever; it must be clamped.
	spans := NewChunker(3, 9).Split("a b c d e f")
	if len(spans) == 0 {
		t.Fatal("expected chunks")
	}
	for i, span := range spans {
		if span.TokenCount > 3 {
			t.Errorf("chunk %d exceeds budget: %d", i, span.TokenCount)
		}
	}
}
