package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyReturnsNil(t *testing.T) {
	if got := Split("   ", 1500, 100); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestSplitShortTextSingleWindow(t *testing.T) {
	text := "A short review with no special punctuation to break on here"
	got := Split(text, 1500, 100)
	if len(got) != 1 {
		t.Fatalf("got %d windows, want 1", len(got))
	}
	if got[0].Index != 1 {
		t.Fatalf("got index %d, want 1", got[0].Index)
	}
	if got[0].Text != text {
		t.Fatalf("got %q, want %q", got[0].Text, text)
	}
}

func TestSplitRespectsReadingOrder(t *testing.T) {
	sentence := strings.Repeat("word ", 20) + ". "
	text := strings.Repeat(sentence, 30)
	got := Split(text, 200, 20)
	if len(got) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(got))
	}
	for i, w := range got {
		if w.Index != i+1 {
			t.Fatalf("window %d has index %d, want %d", i, w.Index, i+1)
		}
	}
}

func TestSplitOverlapProgressesForward(t *testing.T) {
	text := strings.Repeat("x", 5000)
	got := Split(text, 1500, 100)
	if len(got) < 3 {
		t.Fatalf("expected several windows splitting 5000 chars at 1500, got %d", len(got))
	}
}

func TestHashIsStableAndFourteenHex(t *testing.T) {
	h1 := Hash("a review about Inception")
	h2 := Hash("a review about Inception")
	if h1 != h2 {
		t.Fatalf("hash not stable: %q vs %q", h1, h2)
	}
	if len(h1) != 14 {
		t.Fatalf("got length %d, want 14", len(h1))
	}
}

func TestIDFormat(t *testing.T) {
	id, err := ID("some_channel", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "some_channel_abc123_") {
		t.Fatalf("got %q, want prefix some_channel_abc123_", id)
	}
	suffix := strings.TrimPrefix(id, "some_channel_abc123_")
	if len(suffix) != 8 {
		t.Fatalf("got suffix %q, want 8 hex chars", suffix)
	}
}
