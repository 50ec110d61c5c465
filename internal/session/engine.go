package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
	"github.com/Ernxxxx/English-word-sub001/internal/srs"
)

// ErrNoCards is returned by Build when the card set cannot support a
// session.
var ErrNoCards = errors.New("no cards eligible for a session")

// Recorder persists the result of one evaluation: the review event, the
// card's new mastery state and the session snapshot, all as a single atomic
// unit. A review event must never exist without its mastery side-effect.
type Recorder interface {
	RecordEvaluation(ctx context.Context, ev Evaluation) error
}

// Evaluation is everything the Recorder needs to persist one step.
type Evaluation struct {
	CardID       int64
	Outcome      srs.Outcome
	LevelBefore  int
	LevelAfter   int
	NextEligible time.Time
	ReviewedAt   time.Time
	Snapshot     Snapshot // session state after this evaluation
}

// Snapshot is the persistable state of a session. It is overwritten after
// every evaluation, so the most recent snapshot is always a valid resume
// point. DeferredIDs holds only the deferrals not yet replayed.
type Snapshot struct {
	ID          string
	DeckID      int64
	Reversed    bool
	Cursor      int
	KnownCount  int
	AgainCount  int
	LaterCount  int
	PrimaryIDs  []int64
	DeferredIDs []int64
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Summary describes a finished session.
type Summary struct {
	Total       int
	Known       int
	Again       int
	Later       int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Engine drives one study session: a fixed primary queue, a FIFO deferred
// queue for cards marked Later, per-outcome counters and the reveal
// sub-state of the card currently shown. It is single-writer: one
// interactive caller invokes its methods sequentially.
type Engine struct {
	id       string
	deckID   int64
	reversed bool

	cards    map[int64]*domain.Card
	primary  []int64
	deferred []int64
	cursor   int
	revealed bool

	known int
	again int
	later int

	startedAt   time.Time
	completedAt *time.Time

	rec Recorder
}

// Build selects the working set for a new session and returns a studying
// engine. Cards never studied before come first, in input order, followed by
// cards already eligible at now, soonest first; cards not yet eligible are
// excluded. The selection is truncated to limit when limit > 0. Returns
// ErrNoCards when nothing qualifies.
func Build(cards []domain.Card, limit int, reversed bool, deckID int64, now time.Time, rec Recorder) (*Engine, error) {
	var fresh, due []domain.Card
	for _, c := range cards {
		switch {
		case c.NextEligibleAt == nil:
			fresh = append(fresh, c)
		case !c.NextEligibleAt.After(now):
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextEligibleAt.Before(*due[j].NextEligibleAt)
	})

	selected := append(fresh, due...)
	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	if len(selected) == 0 {
		return nil, ErrNoCards
	}

	e := &Engine{
		id:        ulid.Make().String(),
		deckID:    deckID,
		reversed:  reversed,
		cards:     make(map[int64]*domain.Card, len(selected)),
		primary:   make([]int64, 0, len(selected)),
		startedAt: now,
		rec:       rec,
	}
	for i := range selected {
		c := selected[i]
		e.cards[c.ID] = &c
		e.primary = append(e.primary, c.ID)
	}
	return e, nil
}

// Resume rebuilds an engine from a previously persisted snapshot so an
// interrupted session continues from the exact card and counters. The cards
// slice must cover every identifier the snapshot references. The reveal
// sub-state always restarts Hidden.
func Resume(snap Snapshot, cards []domain.Card, rec Recorder) (*Engine, error) {
	byID := make(map[int64]*domain.Card, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}
	for _, id := range append(append([]int64{}, snap.PrimaryIDs...), snap.DeferredIDs...) {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("snapshot %s references unknown card %d", snap.ID, id)
		}
	}
	if snap.Cursor < 0 || snap.Cursor > len(snap.PrimaryIDs) {
		return nil, fmt.Errorf("snapshot %s has cursor %d outside queue of %d", snap.ID, snap.Cursor, len(snap.PrimaryIDs))
	}

	return &Engine{
		id:          snap.ID,
		deckID:      snap.DeckID,
		reversed:    snap.Reversed,
		cards:       byID,
		primary:     append([]int64{}, snap.PrimaryIDs...),
		deferred:    append([]int64{}, snap.DeferredIDs...),
		cursor:      snap.Cursor,
		known:       snap.KnownCount,
		again:       snap.AgainCount,
		later:       snap.LaterCount,
		startedAt:   snap.StartedAt,
		completedAt: snap.CompletedAt,
		rec:         rec,
	}, nil
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// DeckID returns the deck the session was built from (0 for all decks).
func (e *Engine) DeckID() int64 { return e.deckID }

// Reversed reports the question/answer orientation chosen at build time.
func (e *Engine) Reversed() bool { return e.reversed }

// Completed reports whether both queues are exhausted.
func (e *Engine) Completed() bool { return e.completedAt != nil }

// Revealed reports whether the answer side of the current card is shown.
func (e *Engine) Revealed() bool { return e.revealed }

// Counts returns the per-outcome tallies. Each card contributes exactly one
// tally, for its final outcome.
func (e *Engine) Counts() (known, again, later int) {
	return e.known, e.again, e.later
}

// Current returns the card being shown, or nil once the session completed.
// While the cursor is inside the primary queue that queue is authoritative;
// afterwards the front of the deferred queue is the card on replay.
func (e *Engine) Current() *domain.Card {
	switch {
	case e.Completed():
		return nil
	case e.cursor < len(e.primary):
		return e.cards[e.primary[e.cursor]]
	case len(e.deferred) > 0:
		return e.cards[e.deferred[0]]
	}
	return nil
}

// Progress returns the fraction of the primary queue already evaluated, in
// [0, 1]. Deferred replays keep it at 1 until completion.
func (e *Engine) Progress() float64 {
	if len(e.primary) == 0 {
		return 0
	}
	done := e.cursor
	if done > len(e.primary) {
		done = len(e.primary)
	}
	return float64(done) / float64(len(e.primary))
}

// IsLastCard reports whether the card currently shown is the session's
// final one, assuming it is not deferred.
func (e *Engine) IsLastCard() bool {
	if e.Completed() {
		return false
	}
	if e.cursor < len(e.primary) {
		return e.cursor == len(e.primary)-1 && len(e.deferred) == 0
	}
	return len(e.deferred) == 1
}

// Reveal shows the answer side of the current card. Revealing twice is a
// no-op so a duplicate tap cannot corrupt state, and revealing a completed
// session does nothing.
func (e *Engine) Reveal() {
	if e.Completed() || e.Current() == nil {
		return
	}
	e.revealed = true
}

// Snapshot returns the current persistable state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		ID:          e.id,
		DeckID:      e.deckID,
		Reversed:    e.reversed,
		Cursor:      e.cursor,
		KnownCount:  e.known,
		AgainCount:  e.again,
		LaterCount:  e.later,
		PrimaryIDs:  append([]int64{}, e.primary...),
		DeferredIDs: append([]int64{}, e.deferred...),
		StartedAt:   e.startedAt,
		CompletedAt: e.completedAt,
	}
}

// Summary returns the session totals. Only meaningful once Completed.
func (e *Engine) Summary() Summary {
	s := Summary{
		Total:     len(e.primary),
		Known:     e.known,
		Again:     e.again,
		Later:     e.later,
		StartedAt: e.startedAt,
	}
	if e.completedAt != nil {
		s.CompletedAt = *e.completedAt
	}
	return s
}

// Evaluate applies the learner's outcome to the current card. It is only
// accepted while the card is revealed; calls while hidden, after
// completion, or with an unrecognised outcome are swallowed as no-ops since
// they are expected races from duplicate input events.
//
// The new mastery state, the review event and the advanced snapshot are
// handed to the Recorder first; the in-memory session only advances once
// that atomic write succeeds, so a failed write leaves the caller free to
// retry the same evaluation without losing position.
func (e *Engine) Evaluate(ctx context.Context, outcome srs.Outcome, now time.Time) error {
	if e.Completed() || !e.revealed || !outcome.Valid() {
		return nil
	}
	card := e.Current()
	if card == nil {
		return nil
	}

	replay := e.cursor >= len(e.primary)
	newLevel, nextEligible := srs.Schedule(card.MasteryLevel, outcome, now)

	// Compute the post-evaluation state without touching the engine yet.
	known, again, later := e.known, e.again, e.later
	if replay {
		// A replayed card already holds a Later tally from its first pass;
		// its final outcome replaces it.
		later--
	}
	switch outcome {
	case srs.Known:
		known++
	case srs.Again:
		again++
	case srs.Later:
		later++
	}

	deferred := append([]int64{}, e.deferred...)
	if replay {
		// One extra attempt per session: the replayed card leaves the
		// deferred queue for good, even if marked Later again.
		deferred = deferred[1:]
	} else if outcome == srs.Later {
		deferred = append(deferred, card.ID)
	}

	cursor := e.cursor
	if !replay {
		cursor++
	}

	var completedAt *time.Time
	if cursor >= len(e.primary) && len(deferred) == 0 {
		t := now
		completedAt = &t
	}

	snap := Snapshot{
		ID:          e.id,
		DeckID:      e.deckID,
		Reversed:    e.reversed,
		Cursor:      cursor,
		KnownCount:  known,
		AgainCount:  again,
		LaterCount:  later,
		PrimaryIDs:  append([]int64{}, e.primary...),
		DeferredIDs: deferred,
		StartedAt:   e.startedAt,
		CompletedAt: completedAt,
	}

	ev := Evaluation{
		CardID:       card.ID,
		Outcome:      outcome,
		LevelBefore:  card.MasteryLevel,
		LevelAfter:   newLevel,
		NextEligible: nextEligible,
		ReviewedAt:   now,
		Snapshot:     snap,
	}
	if err := e.rec.RecordEvaluation(ctx, ev); err != nil {
		return fmt.Errorf("failed to record evaluation for card %d: %w", card.ID, err)
	}

	card.MasteryLevel = newLevel
	card.NextEligibleAt = &nextEligible
	card.ReviewCount++

	e.known, e.again, e.later = known, again, later
	e.deferred = deferred
	e.cursor = cursor
	e.completedAt = completedAt
	e.revealed = false
	return nil
}
