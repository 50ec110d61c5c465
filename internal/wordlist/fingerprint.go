package wordlist

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize concatenates the entry's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them.
func Normalize(entry Entry) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	w := normalizePart(entry.Word)
	t := normalizePart(entry.Translation)
	e := normalizePart(entry.Example)

	// Joined with a newline so distinct fields can never collide, e.g.
	// "word" plus "sub" never equals "wordsub".
	return strings.Join([]string{w, t, e}, "\n")
}

// Fingerprint normalizes an entry and returns its SHA-256 hash as a hex
// string. It is the card's natural key: re-importing an unchanged deck file
// produces the same fingerprints, which keeps imports idempotent.
func Fingerprint(entry Entry) string {
	normalized := Normalize(entry)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
