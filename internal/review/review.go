// Package review computes a card's next scheduling state from an
// answer and persists it together with the day's quota bookkeeping.
package review

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/morvant/deckard/internal/domain"
)

const (
	// firstIntervalHours is the interval scheduled after a card's
	// first successful review.
	firstIntervalHours = 24.0

	// easeFactor multiplies the prior interval on every subsequent
	// successful review.
	easeFactor = 2.5
)

// Apply computes the next scheduling state for one answer. prior is nil
// for a never-reviewed card; missing fields default to zero before the
// arithmetic. Apply is pure — persistence is the Updater's job.
//
// "again" counts a lapse, bumps difficulty, and makes the card due
// immediately so it re-enters the current session. "good" grows the
// interval (24h the first time, ×2.5 after), eases difficulty, and
// marks the card as fully retrievable.
func Apply(deckID, cardID int64, prior *domain.StudyProgress, answer domain.Answer, now time.Time) (domain.StudyProgress, error) {
	if !answer.Valid() {
		return domain.StudyProgress{}, fmt.Errorf("%w: %q", domain.ErrInvalidAnswer, answer)
	}

	var p domain.StudyProgress
	if prior != nil {
		p = *prior
	}
	p.DeckID = deckID
	p.FlashcardID = cardID
	p.Reps++
	p.LastReview = now

	if answer == domain.AnswerAgain {
		p.Lapses++
		p.Difficulty = math.Min(p.Difficulty+1, domain.MaxDifficulty)
		p.NextReview = now // due again within the current session
		return p, nil
	}

	p.Stability++
	p.Difficulty = math.Max(p.Difficulty-0.5, domain.MinDifficulty)

	interval := firstIntervalHours
	if prior != nil && prior.LastInterval != nil {
		interval = *prior.LastInterval * easeFactor
	}
	p.NextReview = now.Add(time.Duration(interval * float64(time.Hour)))
	p.LastInterval = &interval

	retrievability := 1.0
	p.Retrievability = &retrievability
	return p, nil
}

// LogDelta returns the day's log updated for this card, or nil when the
// card was already encountered today. The quota counter is decremented
// exactly once per card per day, on its first encounter, regardless of
// the answer or how many times the card cycles through the again pass.
func LogDelta(log domain.DailyStudyLog, cardID int64) *domain.DailyStudyLog {
	if log.Studied(cardID) {
		return nil
	}
	updated := log
	updated.CardsStudied = append(append([]int64{}, log.CardsStudied...), cardID)
	updated.NewCardsRemaining--
	return &updated
}

// Store is the slice of the progress store the updater needs.
type Store interface {
	GetProgress(deckID, cardID int64) (*domain.StudyProgress, error)
	GetStudyLog(date string, deckID int64) (*domain.DailyStudyLog, error)
	CommitAnswer(p domain.StudyProgress, log *domain.DailyStudyLog) error
}

// Updater records answers against the progress store.
type Updater struct {
	store  Store
	quota  int
	logger *slog.Logger
}

// NewUpdater creates an updater. quota seeds a day's log when the
// answer arrives before any log exists for the day.
func NewUpdater(store Store, quota int, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{store: store, quota: quota, logger: logger}
}

// RecordAnswer computes and persists the card's next scheduling state.
// The progress write and the log update commit as one unit: on error
// nothing is persisted and the caller may retry the same answer.
func (u *Updater) RecordAnswer(deckID int64, card domain.Flashcard, answer domain.Answer, now time.Time) (domain.StudyProgress, error) {
	prior, err := u.store.GetProgress(deckID, card.ID)
	if err != nil {
		return domain.StudyProgress{}, fmt.Errorf("load progress: %w", err)
	}

	next, err := Apply(deckID, card.ID, prior, answer, now)
	if err != nil {
		return domain.StudyProgress{}, err
	}

	date := domain.StudyDate(now)
	log, err := u.store.GetStudyLog(date, deckID)
	if err != nil {
		return domain.StudyProgress{}, fmt.Errorf("load study log: %w", err)
	}
	if log == nil {
		fresh := domain.NewDailyStudyLog(date, deckID, u.quota)
		log = &fresh
	}

	delta := LogDelta(*log, card.ID)
	if err := u.store.CommitAnswer(next, delta); err != nil {
		return domain.StudyProgress{}, fmt.Errorf("commit answer: %w", err)
	}

	u.logger.Debug("answer recorded",
		"deck_id", deckID,
		"card_id", card.ID,
		"answer", string(answer),
		"reps", next.Reps,
		"next_review", next.NextReview,
	)
	return next, nil
}
