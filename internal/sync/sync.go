package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
	"github.com/Ernxxxx/English-word-sub001/internal/gitsource"
	"github.com/Ernxxxx/English-word-sub001/internal/storage"
	"github.com/Ernxxxx/English-word-sub001/internal/wordlist"
)

const deckFileExt = ".words"

// RunSync reconciles every configured source against the card store. One
// bad source is logged and skipped; the run continues with the rest.
func RunSync(db *storage.DB, reposDir string) error {
	slog.Info("starting sync for all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no sources configured, add one with: wordsub add-source <path/or/url.git>")
		return nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory %s: %w", reposDir, err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "kind", source.Kind, "path", source.Path)

		dir := source.Path
		if source.Kind == "git" {
			localPath, err := repoLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot determine local path for git source", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Mirror(source.Path, localPath); err != nil {
				slog.Error("failed to mirror git source", "url", source.Path, "error", err)
				continue
			}
			dir = localPath
		}

		if err := reconcileDir(db, source, dir); err != nil {
			slog.Error("failed to reconcile source", "id", source.ID, "error", err)
			continue
		}

		if err := db.UpdateSourceLastSynced(source.ID); err != nil {
			slog.Warn("failed to update last synced for source", "id", source.ID, "error", err)
		}
	}
	slog.Info("sync complete")
	return nil
}

// reconcileDir walks the source directory for deck files. Each file is one
// deck, named after the file; entries are keyed by fingerprint, so unseen
// entries become new cards and cards whose fingerprint vanished from the
// file are deleted along with their mastery state.
func reconcileDir(db *storage.DB, source storage.Source, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), deckFileExt) {
			return nil
		}

		deckName := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if err := reconcileDeckFile(db, source, deckName, path); err != nil {
			slog.Error("failed to reconcile deck file", "path", path, "error", err)
		}
		return nil
	})
}

func reconcileDeckFile(db *storage.DB, source storage.Source, deckName, path string) error {
	entries, parseErr := wordlist.ParseFile(path)
	if parseErr != nil && len(entries) == 0 {
		return fmt.Errorf("parsing %s: %w", path, parseErr)
	}
	if parseErr != nil {
		slog.Warn("deck file has malformed lines", "path", path, "error", parseErr)
	}

	deckID, err := db.UpsertDeck(deckName, source.ID)
	if err != nil {
		return err
	}

	found := make(map[string]bool, len(entries))
	var inserted int
	for _, entry := range entries {
		fp := wordlist.Fingerprint(entry)
		if found[fp] {
			continue // duplicate line in the file
		}
		found[fp] = true

		existing, err := db.FindCardByFingerprint(fp)
		if err != nil {
			return err
		}
		if existing == nil {
			if _, err := db.InsertCard(domain.Card{
				DeckID:      deckID,
				Fingerprint: fp,
				Word:        entry.Word,
				Translation: entry.Translation,
				Example:     entry.Example,
			}); err != nil {
				return err
			}
			inserted++
		}
	}

	dbCards, err := db.GetCardsByDeckID(deckID)
	if err != nil {
		return err
	}

	var orphaned int
	for _, card := range dbCards {
		if !found[card.Fingerprint] {
			orphaned++
			if err := db.DeleteCardByID(card.ID); err != nil {
				slog.Warn("failed to delete orphaned card", "id", card.ID, "error", err)
			}
		}
	}

	slog.Info("deck reconciled",
		"deck", deckName,
		"entries", len(entries),
		"inserted", inserted,
		"orphaned_deleted", orphaned,
	)
	return nil
}

func repoLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:owner/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
