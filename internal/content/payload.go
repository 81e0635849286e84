package content

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/morvant/deckard/internal/domain"
)

// payload is the wire shape a deck publisher uploads: a single JSON
// document wrapping the card list.
type payload struct {
	Flashcards []domain.Flashcard `json:"flashcards" validate:"required,min=1,dive"`
}

var validate = validator.New()

// decodePayload parses and validates a deck content document. Card IDs
// are assigned positionally when the publisher omitted them, and every
// card is stamped with the owning deck. Malformed documents fail loudly
// rather than defaulting: a silently guessed card would corrupt the
// scheduling timeline.
func decodePayload(data []byte, deckID int64) ([]domain.Flashcard, error) {
	var doc payload
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode deck payload: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid deck payload: %w", err)
	}

	cards := doc.Flashcards
	for i := range cards {
		cards[i].DeckID = deckID
		if cards[i].ID == 0 {
			cards[i].ID = int64(i + 1)
		}
	}
	return cards, nil
}
