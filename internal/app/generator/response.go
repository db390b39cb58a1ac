package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mjoubert/clozecards/internal/domain"
)

// fencedRe matches a fenced code block so that a response wrapped in
// ```json ... ``` can be unwrapped before parsing.
var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ParseError marks a response whose payload is not a JSON object. The
// runner treats these as retryable: the service occasionally returns
// truncated or non-JSON text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse response: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// parseResponse extracts the JSON object from raw response text.
func parseResponse(text string) (map[string]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, &ParseError{Err: err}
	}
	// JSON null decodes into a nil map without error.
	if payload == nil {
		return nil, &ParseError{Err: errors.New("response is not a JSON object")}
	}

	return payload, nil
}

// validCards decodes and validates the candidate cards for one lemma.
// Malformed candidates are dropped individually; a value that is not a
// list of objects yields no cards at all.
func validCards(raw json.RawMessage) []domain.Card {
	var candidates []json.RawMessage
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil
	}

	var cards []domain.Card
	for _, c := range candidates {
		var card domain.Card
		if err := json.Unmarshal(c, &card); err != nil {
			continue
		}
		if err := card.Validate(); err != nil {
			continue
		}
		cards = append(cards, card)
	}

	return cards
}
