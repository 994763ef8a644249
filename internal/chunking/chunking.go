// Package chunking implements the Chunking Stage (C5): splitting source
// transcripts into overlapping windows with stable, content-addressed
// identifiers.
package chunking

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultWindowSize is the default chunk window in characters.
const DefaultWindowSize = 1500

// DefaultOverlap is the default overlap between consecutive windows.
const DefaultOverlap = 100

// separators are the natural break points looked for near the end of a
// window: sentence boundaries, paragraph breaks, and newlines.
// lastSeparator takes whichever of them ends furthest into the window, so
// the order of this list carries no priority.
var separators = []string{". ", "! ", "? ", ".\n", "!\n", "?\n", "\n\n", "\n"}

// Window is one chunk of a transcript in reading order.
type Window struct {
	Text  string
	Index int // 1-based
}

// Split divides text into overlapping windows of at most windowSize
// characters, preferring to break at a separator within the window
// rather than mid-word. overlap characters from the end of one window
// are repeated at the start of the next.
func Split(text string, windowSize, overlap int) []Window {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 || overlap >= windowSize {
		overlap = DefaultOverlap
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	length := len(runes)
	var windows []Window
	start := 0
	index := 1

	for start < length {
		end := start + windowSize
		if end > length {
			end = length
		}
		if end < length {
			if brk, ok := lastSeparator(runes, start, end); ok {
				end = brk
				if end > length {
					end = length
				}
			}
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			windows = append(windows, Window{Text: chunk, Index: index})
			index++
		}
		if end >= length {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return windows
}

// lastSeparator finds the rightmost separator occurrence ending strictly
// after start and at or before end, returning the offset just past it as
// a rune index. strings.LastIndex works in bytes, so a byte offset into
// window is converted back to a rune count before it's added to the rune
// index start — multibyte text (the corpus is primarily Korean) would
// otherwise overshoot the rune slice bounds on Split's runes[start:end].
func lastSeparator(runes []rune, start, end int) (int, bool) {
	window := string(runes[start:end])
	best := -1
	for _, sep := range separators {
		byteIdx := strings.LastIndex(window, sep)
		if byteIdx <= 0 {
			continue
		}
		runeIdx := utf8.RuneCountInString(window[:byteIdx])
		candidate := start + runeIdx + utf8.RuneCountInString(sep)
		if candidate > best {
			best = candidate
		}
	}
	if best > start {
		return best, true
	}
	return 0, false
}

// Hash returns the first 14 hex characters of the MD5 digest of text,
// the content-addressed component of a chunk id.
func Hash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:14]
}

// ID builds the stable chunk identifier reviewer_hash_random.
func ID(reviewer, hash string) (string, error) {
	suffix, err := randomHex(4)
	if err != nil {
		return "", fmt.Errorf("chunking: generate id suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", reviewer, hash, suffix), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
