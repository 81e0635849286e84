// Package session drives one study session end to end: it builds the
// working queue, serves cards, records answers, recycles failed cards
// through an again pass, and syncs progress on completion.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morvant/deckard/internal/domain"
	"github.com/morvant/deckard/internal/scheduler"
)

// State is the controller's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateActive
	StateAgainPass
	StateCompleted
	StateSynced // terminal for this session, valid start for the next
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateAgainPass:
		return "again-pass"
	case StateCompleted:
		return "completed"
	case StateSynced:
		return "synced"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ContentSource resolves deck metadata and card sets.
type ContentSource interface {
	GetDeck(deckID int64) (*domain.Deck, error)
	FetchAndStoreFlashcards(ctx context.Context, deck domain.Deck) ([]domain.Flashcard, error)
}

// ProgressStore is the read side of the progress store the controller
// needs for queue building and sync snapshots.
type ProgressStore interface {
	GetDeckProgress(deckID int64) ([]domain.StudyProgress, error)
	GetStudyLog(date string, deckID int64) (*domain.DailyStudyLog, error)
}

// Recorder persists one answer's scheduling update.
type Recorder interface {
	RecordAnswer(deckID int64, card domain.Flashcard, answer domain.Answer, now time.Time) (domain.StudyProgress, error)
}

// SyncClient uploads the progress snapshot on session completion.
type SyncClient interface {
	SaveProgress(ctx context.Context, progress []domain.StudyProgress) error
}

// Stats accumulates counts for the completion surface.
type Stats struct {
	Total   int
	Correct int
	Again   int
}

// inflightLoad is a pending queue build. Concurrent session starts for
// the same deck await the same load instead of fetching twice.
type inflightLoad struct {
	done chan struct{}
	err  error
}

// Controller is the session state machine. At most one session (one
// deck) is active at a time; starting a session for another deck
// discards the in-memory queue of the previous one. All methods are
// safe for concurrent use and answers are serialized: a second answer
// waits until the prior one's write has settled.
type Controller struct {
	content  ContentSource
	progress ProgressStore
	recorder Recorder
	backup   SyncClient
	quota    int
	clock    func() time.Time
	logger   *slog.Logger

	mu              sync.Mutex
	state           State
	deckID          int64
	queue           []domain.Flashcard
	index           int
	flipped         bool
	studyAgain      []domain.Flashcard
	stats           Stats
	hasStudiedToday bool
	loads           map[int64]*inflightLoad
}

// NewController wires a session controller. quota is the daily
// new-card allowance used when a day's log does not exist yet.
func NewController(content ContentSource, progress ProgressStore, recorder Recorder, backup SyncClient, quota int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		content:  content,
		progress: progress,
		recorder: recorder,
		backup:   backup,
		quota:    quota,
		clock:    time.Now,
		logger:   logger,
		state:    StateIdle,
		loads:    make(map[int64]*inflightLoad),
	}
}

// SetClock overrides the controller clock. Intended for tests.
func (c *Controller) SetClock(clock func() time.Time) { c.clock = clock }

// StartStudySession loads the deck's cards and builds the working
// queue. A concurrent start for the same deck awaits the in-flight
// load rather than fetching again. An empty queue completes the
// session immediately. On fetch failure the controller returns to Idle
// and no partial queue is ever exposed.
func (c *Controller) StartStudySession(ctx context.Context, deckID int64) error {
	c.mu.Lock()
	if load, ok := c.loads[deckID]; ok {
		c.mu.Unlock()
		select {
		case <-load.done:
			return load.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	load := &inflightLoad{done: make(chan struct{})}
	c.loads[deckID] = load

	// Discard any prior session's ephemeral state. Persisted progress
	// from that deck is unaffected.
	c.state = StateLoading
	c.deckID = deckID
	c.queue = nil
	c.index = 0
	c.flipped = false
	c.studyAgain = nil
	c.stats = Stats{}
	c.mu.Unlock()

	queue, studiedToday, err := c.buildQueue(ctx, deckID)

	c.mu.Lock()
	delete(c.loads, deckID)
	load.err = err
	if err != nil {
		if c.deckID == deckID && c.state == StateLoading {
			c.state = StateIdle
		}
		c.mu.Unlock()
		close(load.done)
		return err
	}

	// A start for another deck may have superseded this load.
	if c.deckID == deckID && c.state == StateLoading {
		c.queue = queue
		c.index = 0
		c.flipped = false
		c.studyAgain = nil
		c.stats = Stats{Total: len(queue)}
		c.hasStudiedToday = studiedToday
		if len(queue) == 0 {
			c.state = StateCompleted
		} else {
			c.state = StateActive
		}
		c.logger.Info("study session started",
			"deck_id", deckID,
			"queue", len(queue),
			"state", c.state.String(),
		)
	}
	c.mu.Unlock()
	close(load.done)
	return nil
}

// buildQueue runs the load pipeline: resolve deck, fetch content, read
// today's log and the deck's progress, then select the queue.
func (c *Controller) buildQueue(ctx context.Context, deckID int64) ([]domain.Flashcard, bool, error) {
	deck, err := c.content.GetDeck(deckID)
	if err != nil {
		return nil, false, fmt.Errorf("load deck: %w", err)
	}
	if deck == nil {
		return nil, false, fmt.Errorf("deck %d: %w", deckID, domain.ErrNotFound)
	}

	cards, err := c.content.FetchAndStoreFlashcards(ctx, *deck)
	if err != nil {
		return nil, false, fmt.Errorf("fetch flashcards: %w", err)
	}

	now := c.clock()
	log, err := c.progress.GetStudyLog(domain.StudyDate(now), deckID)
	if err != nil {
		return nil, false, fmt.Errorf("load study log: %w", err)
	}
	if log == nil {
		fresh := domain.NewDailyStudyLog(domain.StudyDate(now), deckID, c.quota)
		log = &fresh
	}

	records, err := c.progress.GetDeckProgress(deckID)
	if err != nil {
		return nil, false, fmt.Errorf("load deck progress: %w", err)
	}

	queue := scheduler.SelectStudyQueue(deckID, cards, scheduler.ProgressByCard(deckID, records), *log, now)
	return queue, len(log.CardsStudied) > 0, nil
}

// CurrentCard returns the card being served.
func (c *Controller) CurrentCard() (domain.Flashcard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateAgainPass {
		return domain.Flashcard{}, fmt.Errorf("no current card in state %s: %w", c.state, domain.ErrPrecondition)
	}
	return c.queue[c.index], nil
}

// Flip reveals the current card's back. Idempotent; valid only while a
// card is being served.
func (c *Controller) Flip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateAgainPass {
		return fmt.Errorf("flip in state %s: %w", c.state, domain.ErrPrecondition)
	}
	c.flipped = true
	return nil
}

// Answer records the outcome for the current card and advances the
// queue. The card must have been flipped first. A card answered
// "again" is re-served later in the same session; when the main queue
// is exhausted the again pile becomes the queue. When both run out the
// session is Completed. If persisting the answer fails, the queue
// pointer does not advance and the same answer may be retried.
func (c *Controller) Answer(answer domain.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive && c.state != StateAgainPass {
		return fmt.Errorf("answer in state %s: %w", c.state, domain.ErrPrecondition)
	}
	if !c.flipped {
		return fmt.Errorf("answer before flip: %w", domain.ErrPrecondition)
	}
	if !answer.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAnswer, answer)
	}

	card := c.queue[c.index]
	if _, err := c.recorder.RecordAnswer(c.deckID, card, answer, c.clock()); err != nil {
		// State is untouched; the caller may retry the same answer.
		return err
	}

	if answer == domain.AnswerAgain {
		c.studyAgain = append(c.studyAgain, card)
		c.stats.Again++
	} else {
		c.stats.Correct++
	}

	c.index++
	c.flipped = false

	switch {
	case c.index < len(c.queue):
		// Keep serving the current pass.
	case len(c.studyAgain) > 0:
		c.queue = c.studyAgain
		c.studyAgain = nil
		c.index = 0
		c.state = StateAgainPass
		c.logger.Info("again pass started", "deck_id", c.deckID, "cards", len(c.queue))
	default:
		c.state = StateCompleted
		c.logger.Info("session completed",
			"deck_id", c.deckID,
			"correct", c.stats.Correct,
			"again", c.stats.Again,
		)
	}
	return nil
}

// StudyAgain restarts the finished pass from the top without touching
// persisted progress. Valid only once the session has Completed and
// before it has synced.
func (c *Controller) StudyAgain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCompleted || len(c.queue) == 0 {
		return fmt.Errorf("study again in state %s: %w", c.state, domain.ErrPrecondition)
	}
	c.index = 0
	c.flipped = false
	c.studyAgain = nil
	c.stats = Stats{Total: len(c.queue)}
	c.state = StateActive
	return nil
}

// CompleteSession uploads the deck's full progress snapshot to the
// sync endpoint. On failure the session stays Completed so the call
// can be retried; locally persisted progress is correct either way. On
// success the ephemeral queue is discarded and the controller moves to
// Synced.
func (c *Controller) CompleteSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCompleted {
		return fmt.Errorf("complete session in state %s: %w", c.state, domain.ErrPrecondition)
	}

	records, err := c.progress.GetDeckProgress(c.deckID)
	if err != nil {
		return fmt.Errorf("load deck progress: %w", err)
	}
	if err := c.backup.SaveProgress(ctx, records); err != nil {
		return fmt.Errorf("sync progress: %w", err)
	}

	log, err := c.progress.GetStudyLog(domain.StudyDate(c.clock()), c.deckID)
	if err != nil {
		return fmt.Errorf("load study log: %w", err)
	}
	c.hasStudiedToday = log != nil && len(log.CardsStudied) > 0

	c.queue = nil
	c.index = 0
	c.flipped = false
	c.studyAgain = nil
	c.state = StateSynced
	return nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the running session counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// IsFlipped reports whether the current card's back is showing.
func (c *Controller) IsFlipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flipped
}

// HasStudiedToday reports whether today's log records any studied
// cards for the session's deck. Refreshed on session start and after
// a successful sync.
func (c *Controller) HasStudiedToday() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasStudiedToday
}

// Remaining returns how many cards are left in the current pass,
// including the card being served.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateAgainPass {
		return 0
	}
	return len(c.queue) - c.index
}
