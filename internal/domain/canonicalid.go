package domain

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\w\p{Hangul}]+`)

// NewCanonicalID mints a stable, human-legible canonical id for a node
// or edge being summarized or seeded for the first time: a slugified
// name, the label, and a random suffix so repeated entities with the
// same name and label never collide.
func NewCanonicalID(label, name string) string {
	slug := nonSlugChars.ReplaceAllString(name, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "entity"
	}
	suffix := randomHex(4)
	return slug + "_" + label + "_" + suffix
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is effectively unreachable on supported
		// platforms; fall back to a fixed suffix rather than panic.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
