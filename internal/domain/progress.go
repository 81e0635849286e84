package domain

import (
	"slices"
	"time"
)

// Answer is the learner's response to a served card.
type Answer string

const (
	AnswerAgain Answer = "again"
	AnswerGood  Answer = "good"
)

// Valid reports whether the answer is one of the known outcomes.
func (a Answer) Valid() bool {
	return a == AnswerAgain || a == AnswerGood
}

// Difficulty bounds for a card's ease value.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// StudyProgress is the mutable scheduling state for one (deck, card)
// pair. A card with no progress record is by definition "new"; the
// record is created on the card's first answer and updated on every
// answer after that.
type StudyProgress struct {
	DeckID         int64     `json:"deck_id"`
	FlashcardID    int64     `json:"flashcard_id"`
	Reps           int       `json:"reps"`
	Lapses         int       `json:"lapses"`
	Stability      float64   `json:"stability"`
	Difficulty     float64   `json:"difficulty"`
	LastReview     time.Time `json:"last_review"`
	NextReview     time.Time `json:"next_review"`
	LastInterval   *float64  `json:"last_interval"`  // hours; nil until the first successful review
	Retrievability *float64  `json:"retrievability"` // nil until the first successful review
}

// Due reports whether the card's next review has come around.
func (p StudyProgress) Due(now time.Time) bool {
	return !p.NextReview.After(now)
}

// DailyStudyLog is the per-(date, deck) quota record. One exists per
// deck per calendar day; it is created lazily the first time a deck's
// cards are fetched on a given day.
type DailyStudyLog struct {
	Date              string  `json:"date"` // YYYY-MM-DD, local timezone
	DeckID            int64   `json:"deck_id"`
	CardsStudied      []int64 `json:"cards_studied"`
	NewCardsRemaining int     `json:"new_cards_remaining"`
}

// NewDailyStudyLog returns a fresh log for the given day with the full
// new-card allowance.
func NewDailyStudyLog(date string, deckID int64, quota int) DailyStudyLog {
	return DailyStudyLog{
		Date:              date,
		DeckID:            deckID,
		CardsStudied:      []int64{},
		NewCardsRemaining: quota,
	}
}

// Studied reports whether the card has already been answered today.
func (l DailyStudyLog) Studied(cardID int64) bool {
	return slices.Contains(l.CardsStudied, cardID)
}

// StudyDate formats a timestamp as the log's calendar-day key in the
// timestamp's own location.
func StudyDate(now time.Time) string {
	return now.Format("2006-01-02")
}
