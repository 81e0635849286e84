package content

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/morvant/deckard/internal/domain"
)

// normalizeCard concatenates a card's content fields after cleaning
// each part. Whitespace is trimmed, text lowercased, and line endings
// normalized so the fingerprint is stable across publisher formatting.
func normalizeCard(card domain.Flashcard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := []string{
		normalizePart(card.FrontText),
		normalizePart(card.BackText),
		normalizePart(card.Notes),
	}

	// Joined with newlines so adjacent fields can't run together and
	// collide with a differently split card.
	return strings.Join(parts, "\n")
}

// Fingerprint hashes a card set's normalized content as a hex SHA-256
// string. Re-fetches compare it against the deck's stored fingerprint
// to detect unchanged content.
func Fingerprint(cards []domain.Flashcard) string {
	var b strings.Builder
	for _, card := range cards {
		b.WriteString(normalizeCard(card))
		b.WriteString("\n---\n")
	}
	hashBytes := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hashBytes)
}
