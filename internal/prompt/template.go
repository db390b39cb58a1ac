// Package prompt loads the card-generation prompt template and renders the
// per-batch prompt. Pure function: file path in, template out.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Placeholder is the substitution token the template must contain.
const Placeholder = "{LEMMA_LIST}"

// ErrNoPlaceholder reports a template without the substitution token.
// Rendering such a template would silently send a prompt with no lemmas,
// so loading fails instead.
var ErrNoPlaceholder = errors.New("placeholder " + Placeholder + " not found")

// Code fences confuse the generation service, which tends to echo them back
// around its own output. They are removed from the template before use.
var (
	jsonFenceRe = regexp.MustCompile("```json\\s*\\n?")
	fenceRe     = regexp.MustCompile("```\\s*\\n?")
)

// Template is a loaded prompt template ready for rendering.
type Template struct {
	text string
}

// Load reads the template file, strips code fences, and verifies the
// placeholder is present.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}

	text := stripFences(string(data))
	if !strings.Contains(text, Placeholder) {
		return nil, fmt.Errorf("prompt template %s: %w", path, ErrNoPlaceholder)
	}

	return &Template{text: text}, nil
}

// Render substitutes the comma-joined lemmas for every placeholder occurrence.
func (t *Template) Render(lemmas []string) string {
	return strings.ReplaceAll(t.text, Placeholder, strings.Join(lemmas, ", "))
}

func stripFences(s string) string {
	s = jsonFenceRe.ReplaceAllString(s, "")
	return fenceRe.ReplaceAllString(s, "")
}
