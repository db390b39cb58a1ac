package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mjoubert/clozecards/internal/cardstore"
	"github.com/mjoubert/clozecards/internal/domain"
	"github.com/mjoubert/clozecards/internal/prompt"
	"github.com/mjoubert/clozecards/internal/provider"
)

// genStep is one scripted Generate outcome.
type genStep struct {
	text string
	err  error
}

// mockGenerator returns scripted outcomes in order and records prompts.
type mockGenerator struct {
	steps   []genStep
	calls   int
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if len(m.steps) == 0 {
		return "", errors.New("mock: no response scripted")
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.text, step.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		BatchSize:      2,
		MaxAttempts:    5,
		MaxRPM:         10,
		BaseRetryDelay: 2 * time.Second,
		RateLimitStep:  30 * time.Second,
	}
}

func testTemplate(t *testing.T) *prompt.Template {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(path, []byte("Generate cards for: {LEMMA_LIST}\n"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	tmpl, err := prompt.Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	return tmpl
}

func testStore(t *testing.T) *cardstore.Store {
	t.Helper()
	return cardstore.New(filepath.Join(t.TempDir(), "cards.json"), testLogger())
}

// newTestRunner wires a Runner whose sleep records delays instead of waiting.
func newTestRunner(t *testing.T, gen provider.TextGenerator, store *cardstore.Store, cfg Config) (*Runner, *[]time.Duration) {
	t.Helper()
	r := NewRunner(testLogger(), gen, testTemplate(t), store, cfg)
	sleeps := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return r, sleeps
}

func validCard(lemma string) domain.Card {
	return domain.Card{
		Sentence:        "Je vois ___ chat.",
		Hint:            "article devant un nom masculin",
		AcceptedAnswers: []string{lemma},
	}
}

// cardJSON builds a service response with one valid card per lemma.
func cardJSON(lemmas ...string) string {
	payload := make(map[string][]domain.Card, len(lemmas))
	for _, l := range lemmas {
		payload[l] = []domain.Card{validCard(l)}
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// --- full runs ---

func TestRunner_HappyPath(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{
		{text: cardJSON("le", "de")},
		{text: cardJSON("un", "la")},
	}}
	store := testStore(t)
	r, sleeps := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de", "un", "la"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Generated != 4 {
		t.Errorf("Generated = %d, want 4", res.Generated)
	}
	if res.Total != 4 {
		t.Errorf("Total = %d, want 4", res.Total)
	}
	if len(res.Failed) != 0 {
		t.Errorf("Failed = %v, want none", res.Failed)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
	if !strings.Contains(gen.prompts[0], "le, de") {
		t.Errorf("first prompt should contain the joined batch, got %q", gen.prompts[0])
	}

	// One pause between the two batches, none after the final one.
	if want := []time.Duration{8 * time.Second}; !slices.Equal(*sleeps, want) {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}

	onDisk := store.Load()
	if len(onDisk) != 4 {
		t.Fatalf("store has %d lemmas, want 4", len(onDisk))
	}
	if onDisk["le"][0].Sentence != "Je vois ___ chat." {
		t.Errorf("stored card sentence = %q", onDisk["le"][0].Sentence)
	}
}

func TestRunner_SecondRunDoesNothing(t *testing.T) {
	store := testStore(t)
	lemmas := []string{"le", "de"}

	first := &mockGenerator{steps: []genStep{{text: cardJSON("le", "de")}}}
	r1, _ := newTestRunner(t, first, store, testConfig())
	if _, err := r1.Run(context.Background(), lemmas); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &mockGenerator{}
	r2, _ := newTestRunner(t, second, store, testConfig())
	res, err := r2.Run(context.Background(), lemmas)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.calls != 0 {
		t.Errorf("second run made %d calls, want 0", second.calls)
	}
	if res.Generated != 0 {
		t.Errorf("Generated = %d, want 0", res.Generated)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}
}

func TestRunner_ResumeSkipsExistingLemmas(t *testing.T) {
	store := testStore(t)
	seed := map[string][]domain.Card{"le": {validCard("le")}}
	if err := store.Save(seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	gen := &mockGenerator{steps: []genStep{{text: cardJSON("de")}}}
	r, _ := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("calls = %d, want 1", gen.calls)
	}
	if !strings.Contains(gen.prompts[0], "for: de") {
		t.Errorf("prompt should only carry the missing lemma, got %q", gen.prompts[0])
	}
	if res.Generated != 1 || res.Total != 2 {
		t.Errorf("Generated/Total = %d/%d, want 1/2", res.Generated, res.Total)
	}
}

func TestRunner_CountLimitsTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Count = 3
	cfg.BatchSize = 10

	gen := &mockGenerator{steps: []genStep{{text: cardJSON("le", "de", "un")}}}
	r, _ := newTestRunner(t, gen, testStore(t), cfg)

	res, err := r.Run(context.Background(), []string{"le", "de", "un", "la", "et"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("calls = %d, want 1", gen.calls)
	}
	if !strings.Contains(gen.prompts[0], "le, de, un") {
		t.Errorf("prompt = %q, want first three lemmas", gen.prompts[0])
	}
	if strings.Contains(gen.prompts[0], "la") {
		t.Errorf("prompt should not include lemmas beyond the count, got %q", gen.prompts[0])
	}
	if res.Generated != 3 {
		t.Errorf("Generated = %d, want 3", res.Generated)
	}
}

func TestRunner_DryRunMakesNoCalls(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true

	gen := &mockGenerator{}
	store := testStore(t)
	r, _ := newTestRunner(t, gen, store, cfg)

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 0 {
		t.Errorf("calls = %d, want 0", gen.calls)
	}
	if res.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", res.Skipped)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("dry run should not write the store")
	}
}

// --- retry behavior ---

func TestRunner_ParseErrorRetriesWithBackoff(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{
		{text: "I'm sorry, here is prose instead of JSON."},
		{text: "```json\nstill not json\n```"},
		{text: cardJSON("le", "de")},
	}}
	r, sleeps := newTestRunner(t, gen, testStore(t), testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if res.Generated != 2 {
		t.Errorf("Generated = %d, want 2", res.Generated)
	}
	// Base delay doubling per attempt.
	if want := []time.Duration{2 * time.Second, 4 * time.Second}; !slices.Equal(*sleeps, want) {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestRunner_RateLimitHonorsSuggestedWait(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{
		{err: &provider.RateLimitError{Err: errors.New("429 RESOURCE_EXHAUSTED")}},
		{err: &provider.RateLimitError{RetryAfter: 60 * time.Second, Err: errors.New("429 RESOURCE_EXHAUSTED")}},
		{text: cardJSON("le", "de")},
	}}
	r, sleeps := newTestRunner(t, gen, testStore(t), testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Generated != 2 {
		t.Errorf("Generated = %d, want 2", res.Generated)
	}
	// Attempt 1: linear floor 30s. Attempt 2: suggested 60s+5s beats 60s floor.
	if want := []time.Duration{30 * time.Second, 65 * time.Second}; !slices.Equal(*sleeps, want) {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestRunner_ExhaustedBatchRecordsAllLemmas(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{
		{text: "bad"}, {text: "bad"}, {text: "bad"}, {text: "bad"}, {text: "bad"},
	}}
	store := testStore(t)
	r, sleeps := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 5 {
		t.Errorf("calls = %d, want 5 (max attempts)", gen.calls)
	}
	if res.Generated != 0 {
		t.Errorf("Generated = %d, want 0", res.Generated)
	}
	if !slices.Equal(res.Failed, []string{"le", "de"}) {
		t.Errorf("Failed = %v, want the whole batch", res.Failed)
	}
	// Four sleeps: no wait after the final attempt.
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if !slices.Equal(*sleeps, want) {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("failed batch should not write the store")
	}
}

func TestRunner_FailedBatchDoesNotBlockLaterBatches(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{
		{text: "bad"}, {text: "bad"}, {text: "bad"}, {text: "bad"}, {text: "bad"},
		{text: cardJSON("un", "la")},
	}}
	store := testStore(t)
	r, _ := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de", "un", "la"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 6 {
		t.Errorf("calls = %d, want 6", gen.calls)
	}
	if res.Generated != 2 {
		t.Errorf("Generated = %d, want 2", res.Generated)
	}
	if !slices.Equal(res.Failed, []string{"le", "de"}) {
		t.Errorf("Failed = %v, want the first batch", res.Failed)
	}

	onDisk := store.Load()
	if len(onDisk) != 2 {
		t.Errorf("store has %d lemmas, want the 2 from the second batch", len(onDisk))
	}
}

func TestRunner_CanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &mockGenerator{steps: []genStep{{err: errors.New("transport closed")}}}
	r, _ := newTestRunner(t, gen, testStore(t), testConfig())

	_, err := r.Run(ctx, []string{"le", "de"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries after cancel)", gen.calls)
	}
}

// --- validation outcomes within a batch ---

func TestRunner_PartialResponseFailsMissingLemmas(t *testing.T) {
	gen := &mockGenerator{steps: []genStep{{text: cardJSON("le")}}}
	store := testStore(t)
	r, _ := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A missing lemma is not grounds for a retry of the batch.
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}
	if res.Generated != 1 {
		t.Errorf("Generated = %d, want 1", res.Generated)
	}
	if !slices.Equal(res.Failed, []string{"de"}) {
		t.Errorf("Failed = %v, want [de]", res.Failed)
	}

	onDisk := store.Load()
	if _, ok := onDisk["le"]; !ok {
		t.Error("store should contain the lemma that validated")
	}
	if _, ok := onDisk["de"]; ok {
		t.Error("store should not contain the missing lemma")
	}
}

func TestRunner_EmptyValidatedResultFailsWithoutRetry(t *testing.T) {
	// Parseable JSON object, but nothing in it survives validation.
	gen := &mockGenerator{steps: []genStep{{text: `{
		"le": [{"sentence": "no blank here", "hint": "h", "acceptedAnswers": ["le"]}],
		"de": []
	}`}}}
	store := testStore(t)
	r, sleeps := newTestRunner(t, gen, store, testConfig())

	res, err := r.Run(context.Background(), []string{"le", "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (validation emptiness is not retryable)", gen.calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
	if !slices.Equal(res.Failed, []string{"le", "de"}) {
		t.Errorf("Failed = %v, want the whole batch", res.Failed)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("empty result should not write the store")
	}
}

func TestRunner_ExtraResponseLemmasIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1

	gen := &mockGenerator{steps: []genStep{{text: cardJSON("le", "bonus")}}}
	store := testStore(t)
	r, _ := newTestRunner(t, gen, store, cfg)

	res, err := r.Run(context.Background(), []string{"le"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Generated != 1 {
		t.Errorf("Generated = %d, want 1", res.Generated)
	}
	onDisk := store.Load()
	if len(onDisk) != 1 {
		t.Errorf("store has %d lemmas, want 1", len(onDisk))
	}
	if _, ok := onDisk["bonus"]; ok {
		t.Error("unrequested lemma should not be merged")
	}
}

// --- classify ---

func TestClassify(t *testing.T) {
	r := &Runner{cfg: testConfig()}
	rl := func(after time.Duration) error {
		return &provider.RateLimitError{RetryAfter: after, Err: errors.New("quota exceeded")}
	}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
		reason  string
	}{
		{"parse error, first attempt", &ParseError{Err: errors.New("bad json")}, 1, 2 * time.Second, "parse_error"},
		{"parse error, fourth attempt", &ParseError{Err: errors.New("bad json")}, 4, 16 * time.Second, "parse_error"},
		{"api error doubles too", errors.New("boom"), 2, 4 * time.Second, "api_error"},
		{"rate limit without hint → linear floor", rl(0), 1, 30 * time.Second, "rate_limited"},
		{"rate limit hint beats floor", rl(90 * time.Second), 2, 95 * time.Second, "rate_limited"},
		{"rate limit floor beats small hint", rl(10 * time.Second), 3, 90 * time.Second, "rate_limited"},
		{"wrapped rate limit still detected", fmt.Errorf("generate: %w", rl(0)), 2, 60 * time.Second, "rate_limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, reason := r.classify(tt.err, tt.attempt)
			if wait != tt.want {
				t.Errorf("wait = %v, want %v", wait, tt.want)
			}
			if reason != tt.reason {
				t.Errorf("reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}

// --- partition ---

func TestPartition(t *testing.T) {
	lemmas := []string{"a", "b", "c", "d", "e"}

	batches := partition(lemmas, 2)
	if len(batches) != 3 {
		t.Fatalf("len = %d, want 3", len(batches))
	}
	if !slices.Equal(batches[2], []string{"e"}) {
		t.Errorf("last batch = %v, want the short remainder", batches[2])
	}

	if got := partition(nil, 2); got != nil {
		t.Errorf("partition(nil) = %v, want nil", got)
	}

	// A non-positive size yields a single batch.
	for _, size := range []int{0, -1} {
		got := partition(lemmas, size)
		if len(got) != 1 || !slices.Equal(got[0], lemmas) {
			t.Errorf("partition(size %d) = %v, want one batch with all lemmas", size, got)
		}
	}
	if got := partition(nil, 0); got != nil {
		t.Errorf("partition(nil, 0) = %v, want nil", got)
	}
}
