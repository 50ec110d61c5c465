package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
	"github.com/Ernxxxx/English-word-sub001/internal/session"
	"github.com/Ernxxxx/English-word-sub001/internal/srs"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedDeck(t *testing.T, db *DB) int64 {
	t.Helper()
	sourceID, err := db.InsertSource("/tmp/decks", "local")
	if err != nil {
		t.Fatal(err)
	}
	deckID, err := db.UpsertDeck("basics", sourceID)
	if err != nil {
		t.Fatal(err)
	}
	return deckID
}

func seedCard(t *testing.T, db *DB, deckID int64, fingerprint string) int64 {
	t.Helper()
	id, err := db.InsertCard(domain.Card{
		DeckID:      deckID,
		Fingerprint: fingerprint,
		Word:        "apfel",
		Translation: "apple",
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestUpsertDeckIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	sourceID, err := db.InsertSource("/tmp/decks", "local")
	if err != nil {
		t.Fatal(err)
	}

	first, err := db.UpsertDeck("basics", sourceID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.UpsertDeck("basics", sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected the same deck ID on repeat upsert, got %d and %d", first, second)
	}
}

func TestDueCardsOrdering(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	now := time.Now()

	fresh := seedCard(t, db, deckID, "fp-fresh")
	soon := seedCard(t, db, deckID, "fp-soon")
	long := seedCard(t, db, deckID, "fp-long")
	future := seedCard(t, db, deckID, "fp-future")

	setEligible := func(id int64, at time.Time) {
		t.Helper()
		if _, err := db.conn.Exec(`UPDATE cards SET next_eligible_at = ? WHERE id = ?`, at, id); err != nil {
			t.Fatal(err)
		}
	}
	setEligible(soon, now.Add(-time.Minute))
	setEligible(long, now.Add(-2*time.Hour))
	setEligible(future, now.Add(time.Hour))

	cards, err := db.DueCards(deckID, 10, now)
	if err != nil {
		t.Fatalf("DueCards returned an unexpected error: %v", err)
	}

	expected := []int64{fresh, long, soon}
	if len(cards) != len(expected) {
		t.Fatalf("expected %d due cards, got %d", len(expected), len(cards))
	}
	for i, id := range expected {
		if cards[i].ID != id {
			t.Errorf("due[%d] = card %d, expected %d", i, cards[i].ID, id)
		}
	}

	limited, err := db.DueCards(deckID, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to cap the result at 2, got %d", len(limited))
	}
}

func testSnapshot(id string, deckID int64, primary []int64) session.Snapshot {
	return session.Snapshot{
		ID:          id,
		DeckID:      deckID,
		Cursor:      0,
		PrimaryIDs:  primary,
		DeferredIDs: []int64{},
		StartedAt:   time.Now(),
	}
}

func TestRecordEvaluation(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	cardID := seedCard(t, db, deckID, "fp-eval")
	now := time.Now()

	snap := testSnapshot("01SESSION", deckID, []int64{cardID})
	snap.Cursor = 1
	snap.KnownCount = 1
	done := now
	snap.CompletedAt = &done

	err := db.RecordEvaluation(context.Background(), session.Evaluation{
		CardID:       cardID,
		Outcome:      srs.Known,
		LevelBefore:  0,
		LevelAfter:   1,
		NextEligible: now.Add(time.Hour),
		ReviewedAt:   now,
		Snapshot:     snap,
	})
	if err != nil {
		t.Fatalf("RecordEvaluation returned an unexpected error: %v", err)
	}

	card, err := db.FindCardByFingerprint("fp-eval")
	if err != nil {
		t.Fatal(err)
	}
	if card.MasteryLevel != 1 || card.ReviewCount != 1 || card.NextEligibleAt == nil {
		t.Errorf("expected the mastery update to be applied, got %+v", card)
	}

	var reviews int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID).Scan(&reviews); err != nil {
		t.Fatal(err)
	}
	if reviews != 1 {
		t.Errorf("expected 1 review row, got %d", reviews)
	}

	// The completed snapshot went along in the same transaction.
	open, err := db.LatestIncompleteSession(deckID)
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("expected no incomplete session after completion, got %+v", open)
	}
}

func TestRecordEvaluationIsAtomic(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	cardID := seedCard(t, db, deckID, "fp-atomic")
	now := time.Now()

	// A level outside the column's CHECK range makes the mastery update
	// fail after the review insert succeeded; the insert must be rolled
	// back with it.
	err := db.RecordEvaluation(context.Background(), session.Evaluation{
		CardID:       cardID,
		Outcome:      srs.Known,
		LevelBefore:  5,
		LevelAfter:   9,
		NextEligible: now.Add(time.Hour),
		ReviewedAt:   now,
		Snapshot:     testSnapshot("01ATOMIC", deckID, []int64{cardID}),
	})
	if err == nil {
		t.Fatal("expected the constraint violation to surface")
	}

	var reviews int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID).Scan(&reviews); err != nil {
		t.Fatal(err)
	}
	if reviews != 0 {
		t.Errorf("expected the review insert to be rolled back, found %d rows", reviews)
	}

	card, err := db.FindCardByFingerprint("fp-atomic")
	if err != nil {
		t.Fatal(err)
	}
	if card.ReviewCount != 0 || card.MasteryLevel != 0 {
		t.Errorf("expected the card to be untouched, got %+v", card)
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	a := seedCard(t, db, deckID, "fp-a")
	b := seedCard(t, db, deckID, "fp-b")

	snap := testSnapshot("01ROUNDTRIP", deckID, []int64{a, b})
	snap.Cursor = 1
	snap.LaterCount = 1
	snap.DeferredIDs = []int64{a}
	snap.Reversed = true
	if err := db.SaveSession(snap); err != nil {
		t.Fatalf("SaveSession returned an unexpected error: %v", err)
	}

	got, err := db.LatestIncompleteSession(deckID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected to find the saved snapshot")
	}
	if got.ID != snap.ID || got.Cursor != 1 || got.LaterCount != 1 || !got.Reversed {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if len(got.PrimaryIDs) != 2 || len(got.DeferredIDs) != 1 || got.DeferredIDs[0] != a {
		t.Errorf("expected queues to survive the round trip, got %+v", got)
	}

	cards, err := db.GetCardsByIDs(got.PrimaryIDs)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Errorf("expected 2 cards for the snapshot, got %d", len(cards))
	}
}

func TestLatestIncompleteSessionPicksNewest(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	cardID := seedCard(t, db, deckID, "fp-newest")

	// ULIDs sort lexically by creation time.
	if err := db.SaveSession(testSnapshot("01AAAA", deckID, []int64{cardID})); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSession(testSnapshot("01BBBB", deckID, []int64{cardID})); err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestIncompleteSession(deckID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "01BBBB" {
		t.Errorf("expected the newest session, got %+v", got)
	}
}

func TestPruneStaleSessions(t *testing.T) {
	db := openTestDB(t)
	deckID := seedDeck(t, db)
	cardID := seedCard(t, db, deckID, "fp-stale")
	now := time.Now()

	stale := testSnapshot("01STALE", deckID, []int64{cardID})
	stale.StartedAt = now.Add(-100 * time.Hour)
	recent := testSnapshot("01RECENT", deckID, []int64{cardID})
	recent.StartedAt = now.Add(-time.Hour)

	if err := db.SaveSession(stale); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSession(recent); err != nil {
		t.Fatal(err)
	}

	pruned, err := db.PruneStaleSessions(now, 72*time.Hour)
	if err != nil {
		t.Fatalf("PruneStaleSessions returned an unexpected error: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned session, got %d", pruned)
	}

	got, err := db.LatestIncompleteSession(deckID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "01RECENT" {
		t.Errorf("expected the recent session to survive, got %+v", got)
	}
}

func TestDailyStatUpsert(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertDailyStat(domain.DailyStat{Date: "2024-03-10", StudiedCount: 10, Streak: 3}); err != nil {
		t.Fatalf("UpsertDailyStat returned an unexpected error: %v", err)
	}
	// Conflict path: the count accumulates, the streak stays as decided.
	if err := db.UpsertDailyStat(domain.DailyStat{Date: "2024-03-10", StudiedCount: 5, Streak: 99}); err != nil {
		t.Fatal(err)
	}

	stat, err := db.FindDailyStat("2024-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if stat == nil {
		t.Fatal("expected to find the upserted row")
	}
	if stat.StudiedCount != 15 {
		t.Errorf("expected studied count 15, got %d", stat.StudiedCount)
	}
	if stat.Streak != 3 {
		t.Errorf("expected streak to stay 3, got %d", stat.Streak)
	}

	prev, err := db.LatestDailyStatBefore("2024-03-12")
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || prev.Date != "2024-03-10" {
		t.Errorf("expected 2024-03-10 as the latest prior row, got %+v", prev)
	}

	none, err := db.LatestDailyStatBefore("2024-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("expected no row before the first day, got %+v", none)
	}
}
