package domain

import "time"

// Card is a single unit of study material: a word, its translation and an
// optional usage example. The mastery fields drive scheduling: level 0 means
// unknown, 5 means fully learned, and NextEligibleAt is nil until the card
// has been studied at least once.
type Card struct {
	ID             int64
	DeckID         int64
	Fingerprint    string
	Word           string
	Translation    string
	Example        string
	MasteryLevel   int
	NextEligibleAt *time.Time
	ReviewCount    int
	CreatedAt      time.Time
}

// Review records a single evaluation of a card. Rows are immutable once
// written.
// The Outcome values are:
// 1: Again (failed to recall)
// 2: Later (deferred within the session)
// 3: Known (recalled correctly)
type Review struct {
	ID          int64
	CardID      int64
	Outcome     int
	LevelBefore int
	LevelAfter  int
	ReviewedAt  time.Time
}

// Deck groups cards that were imported from the same deck file.
type Deck struct {
	ID        int64
	Name      string
	SourceID  int64
	CreatedAt time.Time
}

// DailyStat is one row per calendar day. Date is the day key in
// "YYYY-MM-DD" form, StudiedCount accumulates across all sessions completed
// that day, and Streak is the consecutive-day count decided when the row is
// first created.
type DailyStat struct {
	Date         string
	StudiedCount int
	Streak       int
}
