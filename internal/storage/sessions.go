package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
	"github.com/Ernxxxx/English-word-sub001/internal/session"
)

// RecordEvaluation implements session.Recorder. The review event, the
// card's mastery update and the session snapshot are committed as one
// transaction; a failure anywhere rolls all three back.
func (db *DB) RecordEvaluation(ctx context.Context, ev session.Evaluation) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin evaluation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (card_id, outcome, level_before, level_after, reviewed_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.CardID, int(ev.Outcome), ev.LevelBefore, ev.LevelAfter, ev.ReviewedAt); err != nil {
		return fmt.Errorf("failed to insert review for card %d: %w", ev.CardID, err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards
		SET mastery_level = ?, next_eligible_at = ?, review_count = review_count + 1
		WHERE id = ?
	`, ev.LevelAfter, ev.NextEligible, ev.CardID); err != nil {
		return fmt.Errorf("failed to update mastery for card %d: %w", ev.CardID, err)
	}

	if err = upsertSession(ctx, tx, ev.Snapshot); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit evaluation for card %d: %w", ev.CardID, err)
	}
	return nil
}

// SaveSession writes a snapshot outside an evaluation, typically the
// initial one right after a session is built.
func (db *DB) SaveSession(snap session.Snapshot) error {
	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session transaction: %w", err)
	}
	if err := upsertSession(ctx, tx, snap); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", snap.ID, err)
	}
	return nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, snap session.Snapshot) error {
	primary, err := json.Marshal(snap.PrimaryIDs)
	if err != nil {
		return fmt.Errorf("failed to encode primary queue for session %s: %w", snap.ID, err)
	}
	deferred, err := json.Marshal(snap.DeferredIDs)
	if err != nil {
		return fmt.Errorf("failed to encode deferred queue for session %s: %w", snap.ID, err)
	}

	var completedAt sql.NullTime
	if snap.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *snap.CompletedAt, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, deck_id, reversed, cursor, known_count, again_count,
			later_count, primary_ids, deferred_ids, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cursor = excluded.cursor,
			known_count = excluded.known_count,
			again_count = excluded.again_count,
			later_count = excluded.later_count,
			deferred_ids = excluded.deferred_ids,
			completed_at = excluded.completed_at
	`,
		snap.ID,
		snap.DeckID,
		snap.Reversed,
		snap.Cursor,
		snap.KnownCount,
		snap.AgainCount,
		snap.LaterCount,
		string(primary),
		string(deferred),
		snap.StartedAt,
		completedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", snap.ID, err)
	}
	return nil
}

// LatestIncompleteSession returns the most recent unfinished snapshot for a
// deck, or (nil, nil) when there is none. ULID ids sort by creation time,
// so the lexically largest id is the newest session.
func (db *DB) LatestIncompleteSession(deckID int64) (*session.Snapshot, error) {
	row := db.conn.QueryRow(`
		SELECT id, deck_id, reversed, cursor, known_count, again_count,
			later_count, primary_ids, deferred_ids, started_at, completed_at
		FROM sessions
		WHERE completed_at IS NULL AND deck_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, deckID)

	var snap session.Snapshot
	var primary, deferred string
	var completedAt sql.NullTime
	err := row.Scan(
		&snap.ID,
		&snap.DeckID,
		&snap.Reversed,
		&snap.Cursor,
		&snap.KnownCount,
		&snap.AgainCount,
		&snap.LaterCount,
		&primary,
		&deferred,
		&snap.StartedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No session to resume
		}
		return nil, fmt.Errorf("failed to find incomplete session for deck %d: %w", deckID, err)
	}

	if err := json.Unmarshal([]byte(primary), &snap.PrimaryIDs); err != nil {
		return nil, fmt.Errorf("failed to decode primary queue for session %s: %w", snap.ID, err)
	}
	if err := json.Unmarshal([]byte(deferred), &snap.DeferredIDs); err != nil {
		return nil, fmt.Errorf("failed to decode deferred queue for session %s: %w", snap.ID, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		snap.CompletedAt = &t
	}
	return &snap, nil
}

// DeleteSession removes a snapshot.
func (db *DB) DeleteSession(id string) error {
	_, err := db.conn.Exec(`
		DELETE FROM sessions
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// PruneStaleSessions deletes unfinished sessions that started more than
// maxAge ago and returns how many were removed. An abandoned session older
// than that is not worth resuming.
func (db *DB) PruneStaleSessions(now time.Time, maxAge time.Duration) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM sessions
		WHERE completed_at IS NULL AND started_at < ?
	`, now.Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sessions: %w", err)
	}
	return n, nil
}

// FindDailyStat retrieves the stats row for a day key, or (nil, nil).
func (db *DB) FindDailyStat(date string) (*domain.DailyStat, error) {
	var stat domain.DailyStat
	row := db.conn.QueryRow(`
		SELECT date, studied_count, streak
		FROM daily_stats WHERE date = ?
	`, date)

	err := row.Scan(&stat.Date, &stat.StudiedCount, &stat.Streak)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No stats for that day
		}
		return nil, fmt.Errorf("failed to find daily stat for %s: %w", date, err)
	}
	return &stat, nil
}

// LatestDailyStatBefore retrieves the most recent stats row strictly before
// a day key, or (nil, nil).
func (db *DB) LatestDailyStatBefore(date string) (*domain.DailyStat, error) {
	var stat domain.DailyStat
	row := db.conn.QueryRow(`
		SELECT date, studied_count, streak
		FROM daily_stats WHERE date < ?
		ORDER BY date DESC
		LIMIT 1
	`, date)

	err := row.Scan(&stat.Date, &stat.StudiedCount, &stat.Streak)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No prior day on record
		}
		return nil, fmt.Errorf("failed to find daily stat before %s: %w", date, err)
	}
	return &stat, nil
}

// UpsertDailyStat inserts the day's row, or adds the studied count to an
// existing row while leaving its streak untouched. The streak is decided
// once, when the row is first created.
func (db *DB) UpsertDailyStat(stat domain.DailyStat) error {
	_, err := db.conn.Exec(`
		INSERT INTO daily_stats (date, studied_count, streak)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			studied_count = studied_count + excluded.studied_count
	`, stat.Date, stat.StudiedCount, stat.Streak)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat for %s: %w", stat.Date, err)
	}
	return nil
}

// RecentDailyStats returns up to n rows, newest first.
func (db *DB) RecentDailyStats(n int) ([]domain.DailyStat, error) {
	rows, err := db.conn.Query(`
		SELECT date, studied_count, streak
		FROM daily_stats
		ORDER BY date DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent daily stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.DailyStat
	for rows.Next() {
		var stat domain.DailyStat
		if err := rows.Scan(&stat.Date, &stat.StudiedCount, &stat.Streak); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
