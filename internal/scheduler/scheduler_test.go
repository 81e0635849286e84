package scheduler

import (
	"testing"
	"time"

	"github.com/morvant/deckard/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func card(id int64, sortOrder int) domain.Flashcard {
	return domain.Flashcard{ID: id, DeckID: 1, SortOrder: sortOrder, FrontText: "f", BackText: "b"}
}

func progressDueAt(cardID int64, next time.Time) domain.StudyProgress {
	return domain.StudyProgress{DeckID: 1, FlashcardID: cardID, NextReview: next}
}

func queueIDs(queue []domain.Flashcard) []int64 {
	ids := make([]int64, len(queue))
	for i, c := range queue {
		ids[i] = c.ID
	}
	return ids
}

func assertIDs(t *testing.T, got []domain.Flashcard, want ...int64) {
	t.Helper()
	gotIDs := queueIDs(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("Expected queue %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("Expected queue %v, got %v", want, gotIDs)
		}
	}
}

func TestSelectStudyQueue(t *testing.T) {
	t.Run("new cards limited by quota in sort order", func(t *testing.T) {
		// Three never-studied cards, quota 2: the first two by
		// sort_order make the queue, the third is excluded.
		cards := []domain.Flashcard{card(3, 30), card(1, 10), card(2, 20)}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 2)

		queue := SelectStudyQueue(1, cards, nil, log, testNow)

		assertIDs(t, queue, 1, 2)
	})

	t.Run("due cards are never quota limited", func(t *testing.T) {
		yesterday := testNow.Add(-24 * time.Hour)
		cards := []domain.Flashcard{card(1, 10), card(2, 20)}
		byCard := map[int64]domain.StudyProgress{
			1: progressDueAt(1, yesterday),
			2: progressDueAt(2, yesterday),
		}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 0)

		queue := SelectStudyQueue(1, cards, byCard, log, testNow)

		assertIDs(t, queue, 1, 2)
	})

	t.Run("new before due", func(t *testing.T) {
		cards := []domain.Flashcard{card(1, 10), card(2, 20), card(3, 30)}
		byCard := map[int64]domain.StudyProgress{
			1: progressDueAt(1, testNow.Add(-time.Hour)),
		}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 20)

		queue := SelectStudyQueue(1, cards, byCard, log, testNow)

		// Cards 2 and 3 are new, card 1 is due: new prefix first.
		assertIDs(t, queue, 2, 3, 1)
	})

	t.Run("future cards are excluded", func(t *testing.T) {
		cards := []domain.Flashcard{card(1, 10), card(2, 20)}
		byCard := map[int64]domain.StudyProgress{
			1: progressDueAt(1, testNow.Add(time.Hour)),
			2: progressDueAt(2, testNow.Add(-time.Hour)),
		}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 20)

		queue := SelectStudyQueue(1, cards, byCard, log, testNow)

		assertIDs(t, queue, 2)
	})

	t.Run("card due exactly now is due", func(t *testing.T) {
		cards := []domain.Flashcard{card(1, 10)}
		byCard := map[int64]domain.StudyProgress{1: progressDueAt(1, testNow)}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 0)

		queue := SelectStudyQueue(1, cards, byCard, log, testNow)

		assertIDs(t, queue, 1)
	})

	t.Run("studied today short-circuits to a repeat pass", func(t *testing.T) {
		// Quota and due status are irrelevant on a repeat pass: the
		// queue is exactly today's studied cards in sort order.
		cards := []domain.Flashcard{card(2, 20), card(1, 10), card(3, 30)}
		log := domain.DailyStudyLog{
			Date:              "2026-03-10",
			DeckID:            1,
			CardsStudied:      []int64{2, 1},
			NewCardsRemaining: 0,
		}

		queue := SelectStudyQueue(1, cards, nil, log, testNow)

		assertIDs(t, queue, 1, 2)
	})

	t.Run("repeat pass drops cards no longer in the deck", func(t *testing.T) {
		cards := []domain.Flashcard{card(1, 10)}
		log := domain.DailyStudyLog{
			Date:              "2026-03-10",
			DeckID:            1,
			CardsStudied:      []int64{1, 99},
			NewCardsRemaining: 10,
		}

		queue := SelectStudyQueue(1, cards, nil, log, testNow)

		assertIDs(t, queue, 1)
	})

	t.Run("negative quota behaves as zero", func(t *testing.T) {
		// Due cards decrement the counter too, so it can go negative;
		// new cards must simply stop, and due cards stay unaffected.
		yesterday := testNow.Add(-24 * time.Hour)
		cards := []domain.Flashcard{card(1, 10), card(2, 20)}
		byCard := map[int64]domain.StudyProgress{2: progressDueAt(2, yesterday)}
		log := domain.DailyStudyLog{Date: "2026-03-10", DeckID: 1, NewCardsRemaining: -3}

		queue := SelectStudyQueue(1, cards, byCard, log, testNow)

		assertIDs(t, queue, 2)
	})

	t.Run("empty deck yields empty queue", func(t *testing.T) {
		log := domain.NewDailyStudyLog("2026-03-10", 1, 20)
		queue := SelectStudyQueue(1, nil, nil, log, testNow)
		if len(queue) != 0 {
			t.Fatalf("Expected empty queue, got %d cards", len(queue))
		}
	})

	t.Run("selection is deterministic", func(t *testing.T) {
		cards := []domain.Flashcard{card(3, 30), card(1, 10), card(2, 20), card(4, 40)}
		byCard := map[int64]domain.StudyProgress{
			4: progressDueAt(4, testNow.Add(-time.Minute)),
		}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 2)

		first := queueIDs(SelectStudyQueue(1, cards, byCard, log, testNow))
		for i := 0; i < 5; i++ {
			again := queueIDs(SelectStudyQueue(1, cards, byCard, log, testNow))
			for j := range first {
				if again[j] != first[j] {
					t.Fatalf("Run %d diverged: %v vs %v", i, again, first)
				}
			}
		}
	})

	t.Run("equal sort_order keeps input order", func(t *testing.T) {
		cards := []domain.Flashcard{card(7, 10), card(5, 10), card(6, 10)}
		log := domain.NewDailyStudyLog("2026-03-10", 1, 20)

		queue := SelectStudyQueue(1, cards, nil, log, testNow)

		assertIDs(t, queue, 7, 5, 6)
	})
}

func TestProgressByCard(t *testing.T) {
	records := []domain.StudyProgress{
		{DeckID: 1, FlashcardID: 1},
		{DeckID: 2, FlashcardID: 2}, // other deck, ignored
		{DeckID: 1, FlashcardID: 3},
	}
	byCard := ProgressByCard(1, records)
	if len(byCard) != 2 {
		t.Fatalf("Expected 2 records for deck 1, got %d", len(byCard))
	}
	if _, ok := byCard[2]; ok {
		t.Error("Expected record from another deck to be excluded")
	}
}

func TestStats(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)
	cards := []domain.Flashcard{card(1, 10), card(2, 20), card(3, 30), card(4, 40)}
	byCard := map[int64]domain.StudyProgress{
		2: progressDueAt(2, yesterday),
		3: progressDueAt(3, tomorrow),
	}
	log := domain.DailyStudyLog{
		Date:              "2026-03-10",
		DeckID:            1,
		CardsStudied:      []int64{2},
		NewCardsRemaining: -1,
	}

	stats := Stats(1, cards, byCard, log, testNow)

	if stats.New != 2 {
		t.Errorf("Expected 2 new cards, got %d", stats.New)
	}
	if stats.Due != 1 {
		t.Errorf("Expected 1 due card, got %d", stats.Due)
	}
	if stats.Scheduled != 1 {
		t.Errorf("Expected 1 scheduled card, got %d", stats.Scheduled)
	}
	if stats.StudiedToday != 1 {
		t.Errorf("Expected 1 studied today, got %d", stats.StudiedToday)
	}
	if stats.NewRemaining != 0 {
		t.Errorf("Expected remaining clamped to 0, got %d", stats.NewRemaining)
	}
}
