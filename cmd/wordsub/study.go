package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/config"
	"github.com/Ernxxxx/English-word-sub001/internal/session"
	"github.com/Ernxxxx/English-word-sub001/internal/srs"
	"github.com/Ernxxxx/English-word-sub001/internal/stats"
	"github.com/Ernxxxx/English-word-sub001/internal/storage"
)

// runStudy drives an interactive terminal session: show the front of a
// card, reveal on Enter, then read the outcome key. Quitting mid-session is
// safe; the last persisted snapshot is resumed on the next run.
func runStudy(db *storage.DB, agg *stats.Aggregator, cfg *config.Config, deckName string, reversed bool) error {
	var deckID int64
	if deckName != "" {
		deck, err := db.FindDeckByName(deckName)
		if err != nil {
			return err
		}
		if deck == nil {
			return fmt.Errorf("deck %q not found, run 'wordsub sync' first", deckName)
		}
		deckID = deck.ID
	}

	eng, resumed, err := session.Open(db, deckID, cfg.SessionLimit, reversed, time.Now())
	if err != nil {
		if errors.Is(err, session.ErrNoCards) {
			fmt.Println("No cards are due. Come back later.")
			return nil
		}
		return err
	}
	if resumed {
		fmt.Println("Resuming your unfinished session.")
	}

	input := bufio.NewScanner(os.Stdin)
	for !eng.Completed() {
		card := eng.Current()
		front, back := card.Word, card.Translation
		if eng.Reversed() {
			front, back = back, front
		}

		fmt.Printf("\n%3.0f%%  %s\n", eng.Progress()*100, front)
		fmt.Print("      [Enter] to reveal, [q] to quit: ")
		if !input.Scan() {
			return nil
		}
		if strings.TrimSpace(input.Text()) == "q" {
			fmt.Println("Session saved, resume any time.")
			return nil
		}

		eng.Reveal()
		fmt.Printf("      %s\n", back)
		if card.Example != "" {
			fmt.Printf("      %s\n", card.Example)
		}

		outcome, quit := readOutcome(input)
		if quit {
			fmt.Println("Session saved, resume any time.")
			return nil
		}

		if err := eng.Evaluate(context.Background(), outcome, time.Now()); err != nil {
			// Nothing advanced; the same card stays up for a retry.
			fmt.Printf("      Could not record that: %v\n", err)
		}
	}

	summary := eng.Summary()
	stat, err := agg.OnSessionCompleted(summary.CompletedAt, summary.Total)
	if err != nil {
		slog.Error("failed to record daily stats", "session", eng.ID(), "error", err)
	}

	fmt.Printf("\nSession complete: %d cards, %d known, %d again, %d later.\n",
		summary.Total, summary.Known, summary.Again, summary.Later)
	if stat != nil {
		fmt.Printf("Studied %d today. Streak: %d day(s).\n", stat.StudiedCount, stat.Streak)
	}
	return nil
}

func readOutcome(input *bufio.Scanner) (srs.Outcome, bool) {
	for {
		fmt.Print("      [k]nown [a]gain [l]ater [q]uit: ")
		if !input.Scan() {
			return 0, true
		}
		switch strings.TrimSpace(strings.ToLower(input.Text())) {
		case "k":
			return srs.Known, false
		case "a":
			return srs.Again, false
		case "l":
			return srs.Later, false
		case "q":
			return 0, true
		}
	}
}

// runStats prints the aggregated view: today's count, the streak and how
// the cards are spread over mastery levels.
func runStats(db *storage.DB, agg *stats.Aggregator) error {
	now := time.Now()

	today, err := agg.TodayCount(now)
	if err != nil {
		return err
	}
	streak, err := agg.CurrentStreak(now)
	if err != nil {
		return err
	}
	dist, err := db.MasteryDistribution()
	if err != nil {
		return err
	}
	recent, err := db.RecentDailyStats(7)
	if err != nil {
		return err
	}

	fmt.Printf("Studied today: %d\n", today)
	fmt.Printf("Streak:        %d day(s)\n", streak)

	fmt.Println("\nMastery levels:")
	for level := 0; level <= srs.MaxLevel; level++ {
		fmt.Printf("  level %d: %4d card(s)\n", level, dist[level])
	}

	if len(recent) > 0 {
		fmt.Println("\nRecent days:")
		for _, stat := range recent {
			fmt.Printf("  %s  %4d studied  streak %d\n", stat.Date, stat.StudiedCount, stat.Streak)
		}
	}
	return nil
}
