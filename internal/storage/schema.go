package storage

const schema = `
-- The 'decks' table holds deck metadata and content addressing.
CREATE TABLE IF NOT EXISTS decks (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    creator TEXT,
    flashcards_cid TEXT,
    content_repo TEXT,
    encryption_key TEXT,
    fingerprint TEXT,
    last_synced DATETIME
);

-- The 'flashcards' table stores immutable card content per deck.
CREATE TABLE IF NOT EXISTS flashcards (
    deck_id INTEGER NOT NULL,
    id INTEGER NOT NULL,
    sort_order INTEGER NOT NULL,
    front_text TEXT NOT NULL,
    back_text TEXT NOT NULL,
    front_language TEXT,
    back_language TEXT,
    notes TEXT,
    front_image_cid TEXT,
    back_image_cid TEXT,
    audio_tts_cid TEXT,

    PRIMARY KEY(deck_id, id),
    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

-- The 'progress' table stores per-(deck, card) scheduling state.
-- A card with no row here is "new".
CREATE TABLE IF NOT EXISTS progress (
    deck_id INTEGER NOT NULL,
    flashcard_id INTEGER NOT NULL,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    last_review DATETIME NOT NULL,
    next_review DATETIME NOT NULL,
    last_interval REAL,
    retrievability REAL,

    PRIMARY KEY(deck_id, flashcard_id)
);

-- The 'study_log' table tracks the per-day quota, one row per deck per
-- calendar day. cards_studied is a JSON array of card IDs.
CREATE TABLE IF NOT EXISTS study_log (
    date TEXT NOT NULL,
    deck_id INTEGER NOT NULL,
    cards_studied TEXT NOT NULL DEFAULT '[]',
    new_cards_remaining INTEGER NOT NULL,

    PRIMARY KEY(date, deck_id)
);
`
