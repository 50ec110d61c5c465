package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one line of a deck file before it becomes a stored card.
type Entry struct {
	Word        string
	Translation string
	Example     string
}

// ParseFile reads a deck file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck from an io.Reader. The format is line oriented:
//
//	word | translation | example
//
// The example field is optional. Blank lines and lines starting with '#'
// are skipped. Malformed lines are reported in the joined error but do not
// stop the parse; the valid entries are still returned.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var errs []error
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 || len(parts) > 3 {
			errs = append(errs, fmt.Errorf("line %d: expected 'word | translation | example', got %q", lineNo, line))
			continue
		}

		entry := Entry{
			Word:        strings.TrimSpace(parts[0]),
			Translation: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			entry.Example = strings.TrimSpace(parts[2])
		}
		if entry.Word == "" || entry.Translation == "" {
			errs = append(errs, fmt.Errorf("line %d: word and translation must not be empty", lineNo))
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, errors.Join(errs...)
}
