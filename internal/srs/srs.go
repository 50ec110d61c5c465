package srs

import "time"

// Outcome is the learner's self-reported recall result for one card
// presentation.
type Outcome int

const (
	Again Outcome = 1 // failed to recall, drop a level
	Later Outcome = 2 // defer within the session, level unchanged
	Known Outcome = 3 // recalled correctly, gain a level
)

// Valid reports whether o is one of the three defined outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case Again, Later, Known:
		return true
	}
	return false
}

func (o Outcome) String() string {
	switch o {
	case Again:
		return "again"
	case Later:
		return "later"
	case Known:
		return "known"
	}
	return "unknown"
}

// MaxLevel is the highest mastery level a card can reach.
const MaxLevel = 5

// intervals maps a mastery level to the wait before the card becomes
// eligible again. This table is the single source of truth for review
// timing.
var intervals = [MaxLevel + 1]time.Duration{
	0: 0, // immediately eligible
	1: time.Hour,
	2: 8 * time.Hour,
	3: 24 * time.Hour,
	4: 3 * 24 * time.Hour,
	5: 7 * 24 * time.Hour,
}

// Interval returns the wait duration for a mastery level. The second return
// is false for levels outside 0..MaxLevel, which callers should treat as a
// diagnostic condition rather than a schedulable value.
func Interval(level int) (time.Duration, bool) {
	if level < 0 || level > MaxLevel {
		return 0, false
	}
	return intervals[level], true
}

// Schedule computes the outcome of one review: the card's new mastery level
// and the earliest time it may be shown again. It is pure and total: an
// unrecognised outcome leaves the level unchanged instead of failing.
func Schedule(level int, outcome Outcome, now time.Time) (int, time.Time) {
	newLevel := level
	switch outcome {
	case Known:
		newLevel = min(MaxLevel, level+1)
	case Again:
		newLevel = max(0, level-1)
	case Later:
		// level unchanged
	}

	wait, ok := Interval(newLevel)
	if !ok {
		wait = 0
	}
	return newLevel, now.Add(wait)
}
