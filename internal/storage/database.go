package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to
// date. WAL mode keeps concurrent stat reads from blocking session writes.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Source represents a deck source, either a local path or a git URL.
type Source struct {
	ID           int64
	Path         string
	Kind         string // "local" or "git"
	LastSyncedAt sql.NullTime
}

// InsertSource stores a new source and returns its ID.
func (db *DB) InsertSource(path, kind string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, kind)
		VALUES (?, ?)
	`, path, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRow(`
		SELECT id, path, kind, last_synced_at
		FROM sources WHERE path = ?
	`, path)

	err := row.Scan(&s.ID, &s.Path, &s.Kind, &s.LastSyncedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, kind, last_synced_at
		FROM sources
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Kind, &s.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// UpdateSourceLastSynced records when a source was last reconciled.
func (db *DB) UpdateSourceLastSynced(sourceID int64) error {
	_, err := db.conn.Exec(`
		UPDATE sources
		SET last_synced_at = ?
		WHERE id = ?
	`, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last synced for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source. Decks and cards imported from it remain.
func (db *DB) DeleteSource(id int64) error {
	_, err := db.conn.Exec(`
		DELETE FROM sources
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpsertDeck finds or creates a deck by name and returns its ID.
func (db *DB) UpsertDeck(name string, sourceID int64) (int64, error) {
	_, err := db.conn.Exec(`
		INSERT INTO decks (name, source_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET source_id = excluded.source_id
	`, name, sourceID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to upsert deck %s: %w", name, err)
	}
	deck, err := db.FindDeckByName(name)
	if err != nil {
		return 0, err
	}
	if deck == nil {
		return 0, fmt.Errorf("failed to resolve deck %s after upsert", name)
	}
	return deck.ID, nil
}

// FindDeckByName retrieves a deck by its unique name.
func (db *DB) FindDeckByName(name string) (*domain.Deck, error) {
	var d domain.Deck
	var sourceID sql.NullInt64
	row := db.conn.QueryRow(`
		SELECT id, name, source_id, created_at
		FROM decks WHERE name = ?
	`, name)

	err := row.Scan(&d.ID, &d.Name, &sourceID, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Deck not found
		}
		return nil, fmt.Errorf("failed to find deck by name %s: %w", name, err)
	}
	d.SourceID = sourceID.Int64
	return &d, nil
}

// GetAllDecks retrieves all decks.
func (db *DB) GetAllDecks() ([]domain.Deck, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, source_id, created_at
		FROM decks ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var sourceID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Name, &sourceID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		d.SourceID = sourceID.Int64
		decks = append(decks, d)
	}
	return decks, nil
}

const cardColumns = `id, deck_id, fingerprint, word, translation, example,
	mastery_level, next_eligible_at, review_count, created_at`

func scanCard(row interface{ Scan(...any) error }) (domain.Card, error) {
	var c domain.Card
	var eligible sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.DeckID,
		&c.Fingerprint,
		&c.Word,
		&c.Translation,
		&c.Example,
		&c.MasteryLevel,
		&eligible,
		&c.ReviewCount,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.Card{}, err
	}
	if eligible.Valid {
		t := eligible.Time
		c.NextEligibleAt = &t
	}
	return c, nil
}

// InsertCard stores a new card in its never-studied state and returns its ID.
func (db *DB) InsertCard(card domain.Card) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO cards (deck_id, fingerprint, word, translation, example, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		card.DeckID,
		card.Fingerprint,
		card.Word,
		card.Translation,
		card.Example,
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card %s: %w", card.Fingerprint, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for card %s: %w", card.Fingerprint, err)
	}
	return id, nil
}

// FindCardByFingerprint retrieves a card by its content fingerprint.
func (db *DB) FindCardByFingerprint(fingerprint string) (*domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards WHERE fingerprint = ?
	`, fingerprint)

	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card by fingerprint %s: %w", fingerprint, err)
	}
	return &c, nil
}

// GetCardsByDeckID retrieves all cards belonging to a deck.
func (db *DB) GetCardsByDeckID(deckID int64) ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT `+cardColumns+`
		FROM cards WHERE deck_id = ?
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck ID %d: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for deck ID %d: %w", deckID, err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// GetCardsByIDs retrieves the cards for a set of identifiers, typically the
// union of a session snapshot's queues.
func (db *DB) GetCardsByIDs(ids []int64) ([]domain.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.Query(`
		SELECT `+cardColumns+`
		FROM cards WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards by ids: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// DueCards fetches up to limit cards ready for study as of now: cards never
// studied first, then cards whose eligibility has passed, soonest first. A
// deckID of zero or less means all decks.
func (db *DB) DueCards(deckID int64, limit int, now time.Time) ([]domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE (next_eligible_at IS NULL OR next_eligible_at <= ?)`
	args := []any{now}
	if deckID > 0 {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	query += `
		ORDER BY next_eligible_at IS NULL DESC, next_eligible_at ASC, id ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// DeleteCardByID removes a card. Its review history goes with it.
func (db *DB) DeleteCardByID(id int64) error {
	_, err := db.conn.Exec(`
		DELETE FROM cards
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

// MasteryDistribution counts cards per mastery level across all decks.
func (db *DB) MasteryDistribution() (map[int]int, error) {
	rows, err := db.conn.Query(`
		SELECT mastery_level, COUNT(*)
		FROM cards GROUP BY mastery_level
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get mastery distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int)
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mastery distribution row: %w", err)
		}
		dist[level] = count
	}
	return dist, nil
}
