// Package content resolves deck card sets: cached locally when
// available, otherwise fetched from the deck's content-addressed
// gateway payload or its git repository and persisted.
package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/morvant/deckard/internal/domain"
)

// Store is the slice of local storage the content service needs.
type Store interface {
	GetDeck(deckID int64) (*domain.Deck, error)
	UpsertDeck(d domain.Deck) error
	GetDeckFlashcards(deckID int64) ([]domain.Flashcard, error)
	InsertFlashcards(deckID int64, cards []domain.Flashcard) error
	GetStudyLog(date string, deckID int64) (*domain.DailyStudyLog, error)
	UpsertStudyLog(l domain.DailyStudyLog) error
}

// Service fetches and caches deck content.
type Service struct {
	store    Store
	gateway  string
	reposDir string
	quota    int
	client   *http.Client
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService creates a content service. gateway is the base URL of the
// content-addressed HTTP gateway; reposDir is where git-hosted decks
// are checked out.
func NewService(store Store, gateway, reposDir string, quota int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		reposDir: reposDir,
		quota:    quota,
		client:   &http.Client{Timeout: 30 * time.Second},
		clock:    time.Now,
		logger:   logger,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// GetDeck retrieves a deck's metadata from local storage.
func (s *Service) GetDeck(deckID int64) (*domain.Deck, error) {
	return s.store.GetDeck(deckID)
}

// GetDeckFlashcards retrieves a deck's locally cached cards.
func (s *Service) GetDeckFlashcards(deckID int64) ([]domain.Flashcard, error) {
	return s.store.GetDeckFlashcards(deckID)
}

// FetchAndStoreFlashcards returns the deck's card set, fetching and
// persisting it on first use. The call is idempotent: when cards are
// already cached they are returned without re-fetching. Today's study
// log is created with the daily allowance the first time a deck's
// cards are fetched on a given day.
func (s *Service) FetchAndStoreFlashcards(ctx context.Context, deck domain.Deck) ([]domain.Flashcard, error) {
	existing, err := s.store.GetDeckFlashcards(deck.ID)
	if err != nil {
		return nil, fmt.Errorf("load cached flashcards: %w", err)
	}
	if len(existing) > 0 {
		if err := s.ensureTodayLog(deck.ID); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if deck.Encrypted() {
		return nil, fmt.Errorf("fetch deck %d: %w", deck.ID, domain.ErrEncryptedDeck)
	}

	var raw []byte
	switch {
	case deck.ContentRepo != "":
		raw, err = fetchFromRepo(s.reposDir, deck.ContentRepo, s.logger)
	case deck.FlashcardsCID != "":
		raw, err = s.fetchFromGateway(ctx, deck.FlashcardsCID)
	default:
		return nil, fmt.Errorf("deck %d has no content source: %w", deck.ID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch deck %d content: %w", deck.ID, err)
	}

	cards, err := decodePayload(raw, deck.ID)
	if err != nil {
		return nil, fmt.Errorf("deck %d: %w", deck.ID, err)
	}

	if err := s.store.InsertFlashcards(deck.ID, cards); err != nil {
		return nil, fmt.Errorf("store flashcards: %w", err)
	}

	deck.Fingerprint = Fingerprint(cards)
	deck.LastSynced = s.clock()
	if err := s.store.UpsertDeck(deck); err != nil {
		return nil, fmt.Errorf("store deck metadata: %w", err)
	}

	if err := s.ensureTodayLog(deck.ID); err != nil {
		return nil, err
	}

	s.logger.Info("deck content stored",
		"deck_id", deck.ID,
		"cards", len(cards),
		"fingerprint", deck.Fingerprint,
	)
	return s.store.GetDeckFlashcards(deck.ID)
}

// ensureTodayLog lazily creates today's study log so the quota counter
// exists before the first answer.
func (s *Service) ensureTodayLog(deckID int64) error {
	date := domain.StudyDate(s.clock())
	log, err := s.store.GetStudyLog(date, deckID)
	if err != nil {
		return fmt.Errorf("load study log: %w", err)
	}
	if log != nil {
		return nil
	}
	if err := s.store.UpsertStudyLog(domain.NewDailyStudyLog(date, deckID, s.quota)); err != nil {
		return fmt.Errorf("initialize study log: %w", err)
	}
	return nil
}

func (s *Service) fetchFromGateway(ctx context.Context, cid string) ([]byte, error) {
	url := fmt.Sprintf("%s/ipfs/%s", s.gateway, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s for cid %s", resp.Status, cid)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	return body, nil
}
