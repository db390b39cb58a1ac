// Package cardstore persists the lemma→cards mapping as a single JSON file.
// The file is the unit of resume: lemmas present in it are never regenerated.
package cardstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mjoubert/clozecards/internal/domain"
)

// Store reads and writes the card store file at a fixed path.
type Store struct {
	path string
	log  *slog.Logger
}

// New creates a Store for the given file path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, log: logger}
}

// Path returns the store file location.
func (s *Store) Path() string { return s.path }

// Load returns the mapping currently on disk. A missing, unreadable, or
// corrupt file yields an empty mapping: previous output is never a reason
// to abort a run, it just means those lemmas get regenerated.
func (s *Store) Load() map[string][]domain.Card {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("card store unreadable, starting empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return map[string][]domain.Card{}
	}

	var cards map[string][]domain.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		s.log.Warn("card store corrupt, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return map[string][]domain.Card{}
	}
	if cards == nil {
		cards = map[string][]domain.Card{}
	}
	return cards
}

// Save writes the complete mapping. The JSON is written to a temp file in
// the destination directory and renamed into place, so a crash mid-write
// leaves the previous store intact.
func (s *Store) Save(cards map[string][]domain.Card) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cards); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode card store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace card store: %w", err)
	}
	return nil
}
