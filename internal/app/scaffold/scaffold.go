// Package scaffold builds placeholder card stores so the deck UI can be
// developed and tested without spending generation quota.
package scaffold

import (
	"fmt"

	"github.com/mjoubert/clozecards/internal/domain"
)

// CardsPerLemma is the number of placeholder cards written per lemma.
const CardsPerLemma = 3

// Build creates placeholder cards for every lemma. The output has the same
// shape as a generated store and every card passes domain validation.
func Build(lemmas []string) map[string][]domain.Card {
	cards := make(map[string][]domain.Card, len(lemmas))
	for _, lemma := range lemmas {
		cards[lemma] = placeholders(lemma)
	}
	return cards
}

func placeholders(lemma string) []domain.Card {
	cards := make([]domain.Card, 0, CardsPerLemma)
	for i := 1; i <= CardsPerLemma; i++ {
		cards = append(cards, domain.Card{
			Sentence:        fmt.Sprintf("PLACEHOLDER: sentence with %s for %q (context %d).", domain.BlankMarker, lemma, i),
			Hint:            fmt.Sprintf("PLACEHOLDER: hint for %q (concept %d).", lemma, i),
			AcceptedAnswers: []string{lemma},
		})
	}
	return cards
}
