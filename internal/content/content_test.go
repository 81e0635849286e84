package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/morvant/deckard/internal/domain"
	"github.com/morvant/deckard/internal/storage"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const testPayload = `{
	"flashcards": [
		{"sort_order": 20, "front_text": "dos", "back_text": "two"},
		{"sort_order": 10, "front_text": "uno", "back_text": "one"}
	]
}`

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T, db *storage.DB, gateway string) *Service {
	t.Helper()
	svc := NewService(db, gateway, t.TempDir(), 20, nil)
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func TestFetchAndStoreFlashcards(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches, validates and persists a gateway payload", func(t *testing.T) {
		var requests int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if r.URL.Path != "/ipfs/bafytest" {
				t.Errorf("Unexpected gateway path: %s", r.URL.Path)
			}
			w.Write([]byte(testPayload))
		}))
		defer server.Close()

		db := openTestDB(t)
		svc := newTestService(t, db, server.URL)
		deck := domain.Deck{ID: 1, Name: "test", FlashcardsCID: "bafytest"}
		if err := db.UpsertDeck(deck); err != nil {
			t.Fatalf("UpsertDeck failed: %v", err)
		}

		cards, err := svc.FetchAndStoreFlashcards(ctx, deck)
		if err != nil {
			t.Fatalf("FetchAndStoreFlashcards failed: %v", err)
		}
		if len(cards) != 2 {
			t.Fatalf("Expected 2 cards, got %d", len(cards))
		}
		// IDs are assigned positionally and the store returns sort order.
		if cards[0].FrontText != "uno" || cards[1].FrontText != "dos" {
			t.Errorf("Unexpected card order: %+v", cards)
		}

		t.Run("repeat call uses the cache", func(t *testing.T) {
			again, err := svc.FetchAndStoreFlashcards(ctx, deck)
			if err != nil {
				t.Fatalf("Repeated fetch failed: %v", err)
			}
			if len(again) != 2 {
				t.Fatalf("Expected cached cards, got %d", len(again))
			}
			if requests != 1 {
				t.Fatalf("Expected a single gateway request, got %d", requests)
			}
		})

		t.Run("deck fingerprint is recorded", func(t *testing.T) {
			stored, err := db.GetDeck(1)
			if err != nil {
				t.Fatalf("GetDeck failed: %v", err)
			}
			if stored.Fingerprint == "" {
				t.Error("Expected a content fingerprint on the deck")
			}
			if !stored.LastSynced.Equal(testNow) {
				t.Errorf("Expected last_synced %v, got %v", testNow, stored.LastSynced)
			}
		})

		t.Run("today's log is created with the full allowance", func(t *testing.T) {
			log, err := db.GetStudyLog("2026-03-10", 1)
			if err != nil {
				t.Fatalf("GetStudyLog failed: %v", err)
			}
			if log == nil || log.NewCardsRemaining != 20 {
				t.Fatalf("Expected a fresh log with 20 remaining, got %+v", log)
			}
		})
	})

	t.Run("existing log is not reset by a later fetch", func(t *testing.T) {
		db := openTestDB(t)
		svc := newTestService(t, db, "http://unused.invalid")
		if err := db.InsertFlashcards(1, []domain.Flashcard{{ID: 1, DeckID: 1, SortOrder: 1, FrontText: "f", BackText: "b"}}); err != nil {
			t.Fatalf("InsertFlashcards failed: %v", err)
		}
		log := domain.DailyStudyLog{Date: "2026-03-10", DeckID: 1, CardsStudied: []int64{1}, NewCardsRemaining: 12}
		if err := db.UpsertStudyLog(log); err != nil {
			t.Fatalf("UpsertStudyLog failed: %v", err)
		}

		if _, err := svc.FetchAndStoreFlashcards(context.Background(), domain.Deck{ID: 1, FlashcardsCID: "x"}); err != nil {
			t.Fatalf("FetchAndStoreFlashcards failed: %v", err)
		}
		got, _ := db.GetStudyLog("2026-03-10", 1)
		if got.NewCardsRemaining != 12 || len(got.CardsStudied) != 1 {
			t.Errorf("Expected log untouched, got %+v", got)
		}
	})

	t.Run("encrypted deck is refused", func(t *testing.T) {
		db := openTestDB(t)
		svc := newTestService(t, db, "http://unused.invalid")
		deck := domain.Deck{ID: 2, FlashcardsCID: "x", EncryptionKey: "key"}

		_, err := svc.FetchAndStoreFlashcards(ctx, deck)
		if !errors.Is(err, domain.ErrEncryptedDeck) {
			t.Fatalf("Expected encrypted-deck error, got %v", err)
		}
	})

	t.Run("deck without a content source is not found", func(t *testing.T) {
		db := openTestDB(t)
		svc := newTestService(t, db, "http://unused.invalid")

		_, err := svc.FetchAndStoreFlashcards(ctx, domain.Deck{ID: 3})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Expected not-found error, got %v", err)
		}
	})

	t.Run("gateway error propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusBadGateway)
		}))
		defer server.Close()

		db := openTestDB(t)
		svc := newTestService(t, db, server.URL)

		_, err := svc.FetchAndStoreFlashcards(ctx, domain.Deck{ID: 4, FlashcardsCID: "x"})
		if err == nil {
			t.Fatal("Expected gateway error")
		}
	})

	t.Run("malformed payload fails loudly", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"flashcards": [{"sort_order": 1}]}`))
		}))
		defer server.Close()

		db := openTestDB(t)
		svc := newTestService(t, db, server.URL)

		_, err := svc.FetchAndStoreFlashcards(ctx, domain.Deck{ID: 5, FlashcardsCID: "x"})
		if err == nil {
			t.Fatal("Expected validation error for cards without text")
		}
		// Nothing was persisted.
		cards, _ := db.GetDeckFlashcards(5)
		if len(cards) != 0 {
			t.Fatalf("Expected no cards persisted, got %d", len(cards))
		}
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("assigns positional IDs and the deck", func(t *testing.T) {
		cards, err := decodePayload([]byte(testPayload), 9)
		if err != nil {
			t.Fatalf("decodePayload failed: %v", err)
		}
		if cards[0].ID != 1 || cards[1].ID != 2 {
			t.Errorf("Expected positional IDs, got %d and %d", cards[0].ID, cards[1].ID)
		}
		if cards[0].DeckID != 9 {
			t.Errorf("Expected deck stamped, got %d", cards[0].DeckID)
		}
	})

	t.Run("keeps publisher IDs when present", func(t *testing.T) {
		cards, err := decodePayload([]byte(`{"flashcards":[{"id":42,"sort_order":1,"front_text":"f","back_text":"b"}]}`), 1)
		if err != nil {
			t.Fatalf("decodePayload failed: %v", err)
		}
		if cards[0].ID != 42 {
			t.Errorf("Expected publisher ID kept, got %d", cards[0].ID)
		}
	})

	t.Run("rejects an empty card list", func(t *testing.T) {
		if _, err := decodePayload([]byte(`{"flashcards":[]}`), 1); err == nil {
			t.Fatal("Expected error for empty payload")
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		if _, err := decodePayload([]byte(`{`), 1); err == nil {
			t.Fatal("Expected error for truncated JSON")
		}
	})
}

func TestFingerprint(t *testing.T) {
	cards := []domain.Flashcard{
		{FrontText: "Uno ", BackText: "one\r\nreally"},
		{FrontText: "dos", BackText: "two"},
	}

	t.Run("stable across whitespace and case", func(t *testing.T) {
		normalized := []domain.Flashcard{
			{FrontText: "uno", BackText: "one\nreally"},
			{FrontText: "Dos  ", BackText: "two"},
		}
		if Fingerprint(cards) != Fingerprint(normalized) {
			t.Error("Expected equivalent card sets to share a fingerprint")
		}
	})

	t.Run("content changes change the fingerprint", func(t *testing.T) {
		changed := []domain.Flashcard{
			{FrontText: "uno", BackText: "one really"},
			{FrontText: "dos", BackText: "two"},
		}
		if Fingerprint(cards) == Fingerprint(changed) {
			t.Error("Expected a different fingerprint for different content")
		}
	})
}
