package chunking

import (
	"strings"
	"testing"
)

func TestSplitKeepsParagraphsTogether(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "Rent is due on the 5th.\n\nLate fee is 10% per day.\n\nDeposit is two months."

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	for _, chunk := range chunks {
		if strings.Contains(chunk, "\n\n") && len([]rune(chunk)) > 40 {
			t.Fatalf("chunk exceeds size: %q", chunk)
		}
	}
}

func TestSplitPacksSmallParagraphs(t *testing.T) {
	s := NewSplitter(100, 0)
	chunks := s.Split("a\n\nb\n\nc")
	if len(chunks) != 1 || chunks[0] != "a\n\nb\n\nc" {
		t.Fatalf("expected one packed chunk, got %q", chunks)
	}
}

func TestSplitWindowsLongParagraph(t *testing.T) {
	s := NewSplitter(10, 2)
	chunks := s.Split(strings.Repeat("x", 25))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 windows, got %d: %q", len(chunks), chunks)
	}
	for _, chunk := range chunks {
		if len(chunk) > 10 {
			t.Fatalf("window exceeds size: %q", chunk)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := NewSplitter(0, 0).Split("  \n\n "); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %q", chunks)
	}
}
