package domain

import "time"

// Flashcard is a single immutable content unit belonging to a deck.
// Cards are created when deck content is first imported and are never
// mutated by the engine.
type Flashcard struct {
	ID            int64  `json:"id"`
	DeckID        int64  `json:"deck_id"`
	SortOrder     int    `json:"sort_order"`
	FrontText     string `json:"front_text" validate:"required"`
	BackText      string `json:"back_text"  validate:"required"`
	FrontLanguage string `json:"front_language,omitempty"`
	BackLanguage  string `json:"back_language,omitempty"`
	Notes         string `json:"notes,omitempty"`
	FrontImageCID string `json:"front_image_cid,omitempty"`
	BackImageCID  string `json:"back_image_cid,omitempty"`
	AudioCID      string `json:"audio_tts_cid,omitempty"`
}

// Deck describes a collection of flashcards and where its content lives.
// Content is addressed either by a CID resolvable through an HTTP gateway
// or by a git repository URL.
type Deck struct {
	ID            int64
	Name          string
	Creator       string
	FlashcardsCID string
	ContentRepo   string
	EncryptionKey string // non-empty means the payload is gated
	Fingerprint   string // fingerprint of the stored card set
	LastSynced    time.Time
}

// Encrypted reports whether the deck's content requires decryption
// before it can be used.
func (d Deck) Encrypted() bool {
	return d.EncryptionKey != ""
}
