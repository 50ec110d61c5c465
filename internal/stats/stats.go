package stats

import (
	"fmt"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
)

// Store is the slice of persistence the aggregator needs. Lookups return
// (nil, nil) when no row exists. UpsertDailyStat atomically inserts the
// given row; when the day already exists it instead adds StudiedCount to
// the stored count and leaves the stored streak untouched.
type Store interface {
	FindDailyStat(date string) (*domain.DailyStat, error)
	LatestDailyStatBefore(date string) (*domain.DailyStat, error)
	UpsertDailyStat(stat domain.DailyStat) error
}

// Aggregator maintains the per-day study totals and the consecutive-day
// streak. It is the only place the streak is computed; everything that
// displays a streak reads it back from here.
type Aggregator struct {
	store Store
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// DayKey formats a timestamp as the calendar-day key used throughout the
// stats tables.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// OnSessionCompleted folds one finished session into the day's row. The
// first completion of a day creates the row and decides the streak: one
// more than the previous day's row if that row is dated exactly yesterday,
// otherwise the streak restarts at 1. Later completions the same day only
// add to the studied count.
func (a *Aggregator) OnSessionCompleted(completedAt time.Time, studiedDelta int) (*domain.DailyStat, error) {
	day := DayKey(completedAt)

	existing, err := a.store.FindDailyStat(day)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %s: %w", day, err)
	}
	if existing != nil {
		updated := domain.DailyStat{Date: day, StudiedCount: studiedDelta, Streak: existing.Streak}
		if err := a.store.UpsertDailyStat(updated); err != nil {
			return nil, fmt.Errorf("failed to update stats for %s: %w", day, err)
		}
		existing.StudiedCount += studiedDelta
		return existing, nil
	}

	streak := 1
	prev, err := a.store.LatestDailyStatBefore(day)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior stats before %s: %w", day, err)
	}
	if prev != nil && prev.Date == DayKey(completedAt.AddDate(0, 0, -1)) {
		streak = prev.Streak + 1
	}

	stat := domain.DailyStat{Date: day, StudiedCount: studiedDelta, Streak: streak}
	if err := a.store.UpsertDailyStat(stat); err != nil {
		return nil, fmt.Errorf("failed to insert stats for %s: %w", day, err)
	}
	return &stat, nil
}

// CurrentStreak reports the streak as of now: the most recent row's streak
// while it is still alive (dated today or yesterday), zero once a full
// calendar day has been missed.
func (a *Aggregator) CurrentStreak(now time.Time) (int, error) {
	today := DayKey(now)
	if stat, err := a.store.FindDailyStat(today); err != nil {
		return 0, fmt.Errorf("failed to load stats for %s: %w", today, err)
	} else if stat != nil {
		return stat.Streak, nil
	}

	prev, err := a.store.LatestDailyStatBefore(today)
	if err != nil {
		return 0, fmt.Errorf("failed to load prior stats before %s: %w", today, err)
	}
	if prev != nil && prev.Date == DayKey(now.AddDate(0, 0, -1)) {
		return prev.Streak, nil
	}
	return 0, nil
}

// TodayCount returns the studied count recorded for now's calendar day.
func (a *Aggregator) TodayCount(now time.Time) (int, error) {
	stat, err := a.store.FindDailyStat(DayKey(now))
	if err != nil {
		return 0, fmt.Errorf("failed to load stats for %s: %w", DayKey(now), err)
	}
	if stat == nil {
		return 0, nil
	}
	return stat.StudiedCount, nil
}
