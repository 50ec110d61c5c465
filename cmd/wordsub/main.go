package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/config"
	"github.com/Ernxxxx/English-word-sub001/internal/stats"
	"github.com/Ernxxxx/English-word-sub001/internal/storage"
	"github.com/Ernxxxx/English-word-sub001/internal/sync"
	"github.com/Ernxxxx/English-word-sub001/internal/web"
)

func main() {
	// 1. Define and parse command-line flags
	flags := config.Flags("wordsub")
	flags.Usage = usage(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Open the database
	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Discard sessions too old to be worth resuming
	if pruned, err := db.PruneStaleSessions(time.Now(), cfg.SessionMaxAge); err != nil {
		slog.Warn("failed to prune stale sessions", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned stale sessions", "count", pruned)
	}

	agg := stats.New(db)

	// 4. Dispatch the subcommand
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "sync":
		if err := sync.RunSync(db, cfg.ReposDir); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
	case "add-source":
		if len(args) < 2 {
			log.Fatalf("Usage: wordsub add-source <path/or/url.git>")
		}
		if err := addSource(db, args[1]); err != nil {
			log.Fatalf("Failed to add source: %v", err)
		}
	case "study":
		deck, _ := flags.GetString("deck")
		reversed, _ := flags.GetBool("reversed")
		if err := runStudy(db, agg, cfg, deck, reversed); err != nil {
			log.Fatalf("Study session failed: %v", err)
		}
	case "stats":
		if err := runStats(db, agg); err != nil {
			log.Fatalf("Failed to read stats: %v", err)
		}
	case "serve":
		server := web.NewServer(db, agg, cfg.SessionLimit)
		slog.Info("starting study API server", "addr", cfg.Listen)
		if err := http.ListenAndServe(cfg.Listen, server); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flags.Usage()
		os.Exit(2)
	}
}

// addSource registers a deck source. Anything that looks like a git remote
// is mirrored on sync; everything else is read as a local directory.
func addSource(db *storage.DB, path string) error {
	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered: %s\n", path)
		return nil
	}

	kind := "local"
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		kind = "git"
	}

	id, err := db.InsertSource(path, kind)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s source %d: %s\n", kind, id, path)
	return nil
}

func usage(flags interface{ PrintDefaults() }) func() {
	return func() {
		fmt.Fprintln(os.Stderr, `Usage: wordsub [flags] <command>

Commands:
  add-source <path>  register a local directory or git URL holding deck files
  sync               reconcile all sources into the card store
  study              run an interactive study session in the terminal
  stats              print today's progress, the streak and mastery levels
  serve              expose the study flow as a JSON API

Flags:`)
		flags.PrintDefaults()
	}
}
