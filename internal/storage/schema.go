package storage

const schema = `
-- The 'sources' table tracks where decks come from, either a local directory
-- or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_synced_at DATETIME
);

-- One deck per deck file.
CREATE TABLE IF NOT EXISTS decks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    source_id INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- The 'cards' table holds the study material and its mastery state.
-- next_eligible_at is NULL until the card has been studied once.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck_id INTEGER NOT NULL,
    fingerprint TEXT NOT NULL UNIQUE,
    word TEXT NOT NULL,
    translation TEXT NOT NULL,
    example TEXT NOT NULL DEFAULT '',
    mastery_level INTEGER NOT NULL DEFAULT 0 CHECK(mastery_level BETWEEN 0 AND 5),
    next_eligible_at DATETIME,
    review_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_eligible ON cards(next_eligible_at);

-- Immutable review event log. A row exists if and only if the matching
-- mastery update on 'cards' was applied; both happen in one transaction.
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL,
    outcome INTEGER NOT NULL,
    level_before INTEGER NOT NULL,
    level_after INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_reviews_card ON reviews(card_id);

-- Session snapshots, overwritten after every evaluation. The id is a ULID,
-- so lexical order is creation order.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    deck_id INTEGER NOT NULL DEFAULT 0,
    reversed INTEGER NOT NULL DEFAULT 0,
    cursor INTEGER NOT NULL DEFAULT 0,
    known_count INTEGER NOT NULL DEFAULT 0,
    again_count INTEGER NOT NULL DEFAULT 0,
    later_count INTEGER NOT NULL DEFAULT 0,
    primary_ids TEXT NOT NULL,  -- JSON array of card ids
    deferred_ids TEXT NOT NULL, -- JSON array of card ids
    started_at DATETIME NOT NULL,
    completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions(deck_id, completed_at);

-- One row per calendar day with at least one completed session.
CREATE TABLE IF NOT EXISTS daily_stats (
    date TEXT PRIMARY KEY, -- 'YYYY-MM-DD'
    studied_count INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0
);
`
