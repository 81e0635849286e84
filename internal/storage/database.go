package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/morvant/deckard/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertDeck inserts or replaces a deck's metadata row.
func (db *DB) UpsertDeck(d domain.Deck) error {
	_, err := db.conn.Exec(`
		INSERT INTO decks (id, name, creator, flashcards_cid, content_repo, encryption_key, fingerprint, last_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			creator = excluded.creator,
			flashcards_cid = excluded.flashcards_cid,
			content_repo = excluded.content_repo,
			encryption_key = excluded.encryption_key,
			fingerprint = excluded.fingerprint,
			last_synced = excluded.last_synced
	`,
		d.ID,
		d.Name,
		d.Creator,
		d.FlashcardsCID,
		d.ContentRepo,
		d.EncryptionKey,
		d.Fingerprint,
		d.LastSynced,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert deck %d: %w", d.ID, err)
	}
	return nil
}

// GetDeck retrieves a deck by ID. Returns nil when the deck is unknown.
func (db *DB) GetDeck(deckID int64) (*domain.Deck, error) {
	var d domain.Deck
	var lastSynced sql.NullTime
	row := db.conn.QueryRow(`
		SELECT id, name, creator, flashcards_cid, content_repo, encryption_key, fingerprint, last_synced
		FROM decks WHERE id = ?
	`, deckID)

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Creator,
		&d.FlashcardsCID,
		&d.ContentRepo,
		&d.EncryptionKey,
		&d.Fingerprint,
		&lastSynced,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Deck not found
		}
		return nil, fmt.Errorf("failed to find deck %d: %w", deckID, err)
	}
	if lastSynced.Valid {
		d.LastSynced = lastSynced.Time
	}
	return &d, nil
}

// InsertFlashcards stores a deck's card set in one transaction. Cards
// already present (same deck and card ID) are left untouched so repeated
// imports stay idempotent.
func (db *DB) InsertFlashcards(deckID int64, cards []domain.Flashcard) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flashcard insert: %w", err)
	}
	defer tx.Rollback()

	for _, card := range cards {
		_, err := tx.Exec(`
			INSERT INTO flashcards (deck_id, id, sort_order, front_text, back_text, front_language, back_language, notes, front_image_cid, back_image_cid, audio_tts_cid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(deck_id, id) DO NOTHING
		`,
			deckID,
			card.ID,
			card.SortOrder,
			card.FrontText,
			card.BackText,
			card.FrontLanguage,
			card.BackLanguage,
			card.Notes,
			card.FrontImageCID,
			card.BackImageCID,
			card.AudioCID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flashcard %d in deck %d: %w", card.ID, deckID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flashcard insert: %w", err)
	}
	return nil
}

// GetDeckFlashcards retrieves every card stored for a deck, ordered by
// sort_order. Returns an empty slice when nothing is cached.
func (db *DB) GetDeckFlashcards(deckID int64) ([]domain.Flashcard, error) {
	rows, err := db.conn.Query(`
		SELECT deck_id, id, sort_order, front_text, back_text, front_language, back_language, notes, front_image_cid, back_image_cid, audio_tts_cid
		FROM flashcards WHERE deck_id = ?
		ORDER BY sort_order, id
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcards for deck %d: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		var c domain.Flashcard
		if err := rows.Scan(
			&c.DeckID,
			&c.ID,
			&c.SortOrder,
			&c.FrontText,
			&c.BackText,
			&c.FrontLanguage,
			&c.BackLanguage,
			&c.Notes,
			&c.FrontImageCID,
			&c.BackImageCID,
			&c.AudioCID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard row for deck %d: %w", deckID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetProgress retrieves the scheduling state for one (deck, card) pair.
// Returns nil when the card has never been answered, which classifies
// it as new.
func (db *DB) GetProgress(deckID, cardID int64) (*domain.StudyProgress, error) {
	row := db.conn.QueryRow(`
		SELECT deck_id, flashcard_id, reps, lapses, stability, difficulty, last_review, next_review, last_interval, retrievability
		FROM progress WHERE deck_id = ? AND flashcard_id = ?
	`, deckID, cardID)

	p, err := scanProgress(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No progress yet: the card is new
		}
		return nil, fmt.Errorf("failed to find progress for card %d in deck %d: %w", cardID, deckID, err)
	}
	return p, nil
}

// GetDeckProgress retrieves every progress record for a deck.
func (db *DB) GetDeckProgress(deckID int64) ([]domain.StudyProgress, error) {
	rows, err := db.conn.Query(`
		SELECT deck_id, flashcard_id, reps, lapses, stability, difficulty, last_review, next_review, last_interval, retrievability
		FROM progress WHERE deck_id = ?
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for deck %d: %w", deckID, err)
	}
	defer rows.Close()

	var records []domain.StudyProgress
	for rows.Next() {
		p, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row for deck %d: %w", deckID, err)
		}
		records = append(records, *p)
	}
	return records, rows.Err()
}

func scanProgress(scan func(dest ...any) error) (*domain.StudyProgress, error) {
	var p domain.StudyProgress
	var lastInterval, retrievability sql.NullFloat64
	err := scan(
		&p.DeckID,
		&p.FlashcardID,
		&p.Reps,
		&p.Lapses,
		&p.Stability,
		&p.Difficulty,
		&p.LastReview,
		&p.NextReview,
		&lastInterval,
		&retrievability,
	)
	if err != nil {
		return nil, err
	}
	if lastInterval.Valid {
		p.LastInterval = &lastInterval.Float64
	}
	if retrievability.Valid {
		p.Retrievability = &retrievability.Float64
	}
	return &p, nil
}

// UpsertProgress inserts or replaces a progress record by its composite key.
func (db *DB) UpsertProgress(p domain.StudyProgress) error {
	if err := upsertProgress(db.conn, p); err != nil {
		return fmt.Errorf("failed to upsert progress for card %d in deck %d: %w", p.FlashcardID, p.DeckID, err)
	}
	return nil
}

// GetStudyLog retrieves the daily log for a (date, deck) pair. Returns
// nil when no log exists for that day yet.
func (db *DB) GetStudyLog(date string, deckID int64) (*domain.DailyStudyLog, error) {
	var l domain.DailyStudyLog
	var studied string
	row := db.conn.QueryRow(`
		SELECT date, deck_id, cards_studied, new_cards_remaining
		FROM study_log WHERE date = ? AND deck_id = ?
	`, date, deckID)

	err := row.Scan(&l.Date, &l.DeckID, &studied, &l.NewCardsRemaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No log for this day yet
		}
		return nil, fmt.Errorf("failed to find study log %s for deck %d: %w", date, deckID, err)
	}
	if err := json.Unmarshal([]byte(studied), &l.CardsStudied); err != nil {
		return nil, fmt.Errorf("failed to decode cards_studied for deck %d on %s: %w", deckID, date, err)
	}
	return &l, nil
}

// UpsertStudyLog inserts or replaces a daily log by its composite key.
func (db *DB) UpsertStudyLog(l domain.DailyStudyLog) error {
	if err := upsertStudyLog(db.conn, l); err != nil {
		return fmt.Errorf("failed to upsert study log %s for deck %d: %w", l.Date, l.DeckID, err)
	}
	return nil
}

// CommitAnswer persists an answer's progress record and, when the card
// was encountered for the first time today, the updated daily log — in
// a single transaction. The quota decrement can therefore never land
// without the matching cards_studied entry.
func (db *DB) CommitAnswer(p domain.StudyProgress, log *domain.DailyStudyLog) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin answer commit: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProgress(tx, p); err != nil {
		return fmt.Errorf("failed to write progress for card %d in deck %d: %w", p.FlashcardID, p.DeckID, err)
	}
	if log != nil {
		if err := upsertStudyLog(tx, *log); err != nil {
			return fmt.Errorf("failed to write study log %s for deck %d: %w", log.Date, log.DeckID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer for card %d in deck %d: %w", p.FlashcardID, p.DeckID, err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertProgress(e execer, p domain.StudyProgress) error {
	var lastInterval, retrievability sql.NullFloat64
	if p.LastInterval != nil {
		lastInterval = sql.NullFloat64{Float64: *p.LastInterval, Valid: true}
	}
	if p.Retrievability != nil {
		retrievability = sql.NullFloat64{Float64: *p.Retrievability, Valid: true}
	}

	_, err := e.Exec(`
		INSERT INTO progress (deck_id, flashcard_id, reps, lapses, stability, difficulty, last_review, next_review, last_interval, retrievability)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deck_id, flashcard_id) DO UPDATE SET
			reps = excluded.reps,
			lapses = excluded.lapses,
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			last_review = excluded.last_review,
			next_review = excluded.next_review,
			last_interval = excluded.last_interval,
			retrievability = excluded.retrievability
	`,
		p.DeckID,
		p.FlashcardID,
		p.Reps,
		p.Lapses,
		p.Stability,
		p.Difficulty,
		p.LastReview,
		p.NextReview,
		lastInterval,
		retrievability,
	)
	return err
}

func upsertStudyLog(e execer, l domain.DailyStudyLog) error {
	studied, err := json.Marshal(l.CardsStudied)
	if err != nil {
		return err
	}
	_, err = e.Exec(`
		INSERT INTO study_log (date, deck_id, cards_studied, new_cards_remaining)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, deck_id) DO UPDATE SET
			cards_studied = excluded.cards_studied,
			new_cards_remaining = excluded.new_cards_remaining
	`,
		l.Date,
		l.DeckID,
		string(studied),
		l.NewCardsRemaining,
	)
	return err
}
