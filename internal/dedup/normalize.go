package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalize lowercases content, trims it and collapses every whitespace run to
// a single space. It is the only content normalization used for dedup.
func Normalize(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	pendingSpace := false
	for _, r := range strings.TrimSpace(content) {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Fingerprint identifies a subject's normalized content.
func Fingerprint(subjectID, content string) string {
	sum := sha256.Sum256([]byte(subjectID + "\x00" + Normalize(content)))
	return hex.EncodeToString(sum[:])
}
