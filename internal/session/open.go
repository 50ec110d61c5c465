package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
)

// Store is the persistence surface the session owner needs: the atomic
// evaluation write plus the snapshot and card queries around it.
type Store interface {
	Recorder
	LatestIncompleteSession(deckID int64) (*Snapshot, error)
	GetCardsByIDs(ids []int64) ([]domain.Card, error)
	DueCards(deckID int64, limit int, now time.Time) ([]domain.Card, error)
	SaveSession(snap Snapshot) error
	DeleteSession(id string) error
}

// Open resumes the most recent unfinished session for the deck, or builds
// a fresh one from the cards due as of now. The second return is true when
// an existing session was resumed. Unfinished snapshots without any
// recorded progress are replaced rather than resumed, and a snapshot
// referencing cards that have since been deleted is discarded.
func Open(store Store, deckID int64, limit int, reversed bool, now time.Time) (*Engine, bool, error) {
	snap, err := store.LatestIncompleteSession(deckID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up resumable session: %w", err)
	}
	if snap != nil && snap.HasProgress() {
		cards, err := store.GetCardsByIDs(append(append([]int64{}, snap.PrimaryIDs...), snap.DeferredIDs...))
		if err != nil {
			return nil, false, fmt.Errorf("failed to load cards for session %s: %w", snap.ID, err)
		}
		eng, err := Resume(*snap, cards, store)
		if err == nil {
			return eng, true, nil
		}
		slog.Warn("discarding unresumable session", "id", snap.ID, "error", err)
	}
	if snap != nil {
		if err := store.DeleteSession(snap.ID); err != nil {
			return nil, false, fmt.Errorf("failed to discard session %s: %w", snap.ID, err)
		}
	}

	cards, err := store.DueCards(deckID, limit, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load due cards: %w", err)
	}
	eng, err := Build(cards, limit, reversed, deckID, now, store)
	if err != nil {
		return nil, false, err
	}
	if err := store.SaveSession(eng.Snapshot()); err != nil {
		return nil, false, fmt.Errorf("failed to save initial snapshot: %w", err)
	}
	return eng, false, nil
}

// HasProgress reports whether any evaluation was recorded against the
// snapshot.
func (s *Snapshot) HasProgress() bool {
	return s.Cursor > 0 || s.KnownCount+s.AgainCount+s.LaterCount > 0
}
