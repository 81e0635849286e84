// Package scheduler decides which of a deck's cards make up today's
// study queue. It is pure: all state comes in through parameters,
// including the clock, so selection is deterministic for given inputs.
package scheduler

import (
	"sort"
	"time"

	"github.com/morvant/deckard/internal/domain"
)

// DefaultNewCardsPerDay is the daily allowance of new cards per deck,
// used when a day's study log is created.
const DefaultNewCardsPerDay = 20

// ProgressByCard indexes a deck's progress records by flashcard ID.
// Records for other decks are ignored.
func ProgressByCard(deckID int64, records []domain.StudyProgress) map[int64]domain.StudyProgress {
	byCard := make(map[int64]domain.StudyProgress, len(records))
	for _, p := range records {
		if p.DeckID == deckID {
			byCard[p.FlashcardID] = p
		}
	}
	return byCard
}

// SelectStudyQueue builds the ordered working queue for a study session.
//
// When the day's log already records studied cards, the user has
// completed a pass today: the queue is exactly today's studied cards
// (those still present in allCards) in sort order, and the quota is not
// consulted again. Otherwise cards are partitioned into new (no
// progress record) and due (next_review has passed); cards scheduled
// for a future date are excluded. The final queue is a quota-limited
// prefix of the new cards followed by all due cards. Due cards are
// never quota-limited.
func SelectStudyQueue(
	deckID int64,
	allCards []domain.Flashcard,
	progressByCard map[int64]domain.StudyProgress,
	todayLog domain.DailyStudyLog,
	now time.Time,
) []domain.Flashcard {
	if len(todayLog.CardsStudied) > 0 {
		// Repeat pass over today's work.
		var studied []domain.Flashcard
		for _, card := range allCards {
			if todayLog.Studied(card.ID) {
				studied = append(studied, card)
			}
		}
		sortBySortOrder(studied)
		return studied
	}

	var newCards, dueCards []domain.Flashcard
	for _, card := range allCards {
		p, ok := progressByCard[card.ID]
		switch {
		case !ok:
			newCards = append(newCards, card)
		case p.Due(now):
			dueCards = append(dueCards, card)
		}
	}

	sortBySortOrder(newCards)
	sortBySortOrder(dueCards)

	// Due cards earlier in the day can drive the counter negative, so
	// clamp before slicing.
	limit := todayLog.NewCardsRemaining
	if limit < 0 {
		limit = 0
	}
	if limit > len(newCards) {
		limit = len(newCards)
	}

	queue := make([]domain.Flashcard, 0, limit+len(dueCards))
	queue = append(queue, newCards[:limit]...)
	queue = append(queue, dueCards...)
	return queue
}

// DeckStats summarizes a deck's standing for display surfaces.
type DeckStats struct {
	New          int // cards with no progress record
	Due          int // cards whose next review has passed
	Scheduled    int // cards reviewed before but not due yet
	StudiedToday int
	NewRemaining int
}

// Stats classifies a deck's cards with the same rules the queue
// selection uses.
func Stats(
	deckID int64,
	allCards []domain.Flashcard,
	progressByCard map[int64]domain.StudyProgress,
	todayLog domain.DailyStudyLog,
	now time.Time,
) DeckStats {
	stats := DeckStats{
		StudiedToday: len(todayLog.CardsStudied),
		NewRemaining: todayLog.NewCardsRemaining,
	}
	if stats.NewRemaining < 0 {
		stats.NewRemaining = 0
	}
	for _, card := range allCards {
		p, ok := progressByCard[card.ID]
		switch {
		case !ok:
			stats.New++
		case p.Due(now):
			stats.Due++
		default:
			stats.Scheduled++
		}
	}
	return stats
}

// sortBySortOrder orders cards by ascending sort_order. The sort is
// stable: sort_order values are expected unique per deck but not
// guaranteed, and ties keep their original order.
func sortBySortOrder(cards []domain.Flashcard) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].SortOrder < cards[j].SortOrder
	})
}
