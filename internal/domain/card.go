package domain

import "strings"

// BlankMarker is the literal gap token every card sentence must contain.
// The deck runtime replaces it with an input field.
const BlankMarker = "___"

// Card is one fill-in-the-blank practice card for a lemma.
// JSON tags match the deck's card store format.
type Card struct {
	Sentence        string   `json:"sentence"`
	Hint            string   `json:"hint"`
	AcceptedAnswers []string `json:"acceptedAnswers"`
}

// Validate checks the card invariants: a non-empty sentence containing the
// blank marker, a non-empty hint, and at least one accepted answer.
func (c Card) Validate() error {
	if c.Sentence == "" {
		return NewValidationError("sentence", "required")
	}
	if !strings.Contains(c.Sentence, BlankMarker) {
		return NewValidationError("sentence", "must contain the blank marker "+BlankMarker)
	}
	if c.Hint == "" {
		return NewValidationError("hint", "required")
	}
	if len(c.AcceptedAnswers) == 0 {
		return NewValidationError("acceptedAnswers", "at least one required")
	}
	return nil
}
