package chunks

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 10)
	got := s.Split("hello world")
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("Split = %v, want [hello world]", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(100, 10)
	if got := s.Split(""); len(got) != 0 {
		t.Fatalf("Split(\"\") = %v, want empty", got)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 10) // ~60 chars
	para2 := strings.Repeat("beta ", 10)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	s := NewSplitter(70, 0)
	got := s.Split(text)
	if len(got) != 2 {
		t.Fatalf("Split produced %d chunks, want 2: %v", len(got), got)
	}
	if strings.Contains(got[0], "beta") || strings.Contains(got[1], "alpha") {
		t.Errorf("paragraphs mixed across chunks: %v", got)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	words := strings.Repeat("word ", 500)
	s := NewSplitter(120, 20)
	for i, chunk := range s.Split(words) {
		if n := utf8.RuneCountInString(chunk); n > 120 {
			t.Errorf("chunk %d has %d runes, exceeds 120", i, n)
		}
	}
}

func TestSplitOverlapCarriesTail(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("token")
		sb.WriteByte(' ')
	}
	s := NewSplitter(60, 20)
	chunks := s.Split(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-5:]
		if !strings.Contains(chunks[i], prevTail) {
			// Overlap means each chunk repeats material from the previous one.
			t.Errorf("chunk %d does not overlap previous tail %q: %q", i, prevTail, chunks[i])
		}
	}
}

func TestSplitHandlesUnbreakableRuns(t *testing.T) {
	// A run with no separators at all still gets cut to size.
	text := strings.Repeat("x", 500)
	s := NewSplitter(100, 0)
	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > 100 {
			t.Errorf("chunk %d has %d runes, exceeds 100", i, n)
		}
	}
	if joined := strings.Join(chunks, ""); utf8.RuneCountInString(joined) < 500 {
		t.Errorf("content lost: %d runes total, want >= 500", utf8.RuneCountInString(joined))
	}
}
