// Package generator drives the batch card-generation loop: partition the
// remaining lemmas, render the prompt, call the generation service, validate
// the response, and persist after every batch so an interrupted run can
// resume where it stopped.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/mjoubert/clozecards/internal/cardstore"
	"github.com/mjoubert/clozecards/internal/domain"
	"github.com/mjoubert/clozecards/internal/prompt"
	"github.com/mjoubert/clozecards/internal/provider"
)

// Result holds the outcome of a generation run.
type Result struct {
	Generated int      // lemmas that gained cards this run
	Total     int      // lemmas in the store after the run
	Skipped   int      // lemmas not attempted (dry run)
	Failed    []string // lemmas that yielded no valid cards this run
}

// Runner orchestrates the generation pipeline for one run.
type Runner struct {
	log   *slog.Logger
	gen   provider.TextGenerator
	tmpl  *prompt.Template
	store *cardstore.Store
	cfg   Config

	// sleep is replaced in tests to record delays instead of waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner with the given collaborators and run settings.
func NewRunner(log *slog.Logger, gen provider.TextGenerator, tmpl *prompt.Template, store *cardstore.Store, cfg Config) *Runner {
	return &Runner{
		log:   log,
		gen:   gen,
		tmpl:  tmpl,
		store: store,
		cfg:   cfg,
		sleep: sleepCtx,
	}
}

// Run generates cards for the target lemmas that are not yet in the store.
// The store is rewritten after every successful batch, so an interrupted
// run loses at most the in-flight batch; re-running the same command picks
// up where it stopped.
func (r *Runner) Run(ctx context.Context, lemmas []string) (*Result, error) {
	target := lemmas
	if r.cfg.Count > 0 && r.cfg.Count < len(target) {
		target = target[:r.cfg.Count]
	}

	existing := r.store.Load()
	r.log.Info("store loaded",
		slog.String("path", r.store.Path()),
		slog.Int("lemmas", len(existing)),
	)

	// Step 1: filter out lemmas that already have cards, preserving order.
	var remaining []string
	for _, lemma := range target {
		if _, ok := existing[lemma]; !ok {
			remaining = append(remaining, lemma)
		}
	}

	if len(remaining) == 0 {
		r.log.Info("nothing to do, all target lemmas already have cards",
			slog.Int("target", len(target)),
		)
		return &Result{Total: len(existing)}, nil
	}

	// Step 2: partition into fixed-size batches.
	batches := partition(remaining, r.cfg.BatchSize)
	pause := r.cfg.BatchPause()
	r.log.Info("starting generation",
		slog.Int("lemmas", len(remaining)),
		slog.Int("batches", len(batches)),
		slog.Int("batch_size", r.cfg.BatchSize),
		slog.Int("estimated_minutes", int(float64(len(batches))*pause.Minutes())+1),
	)

	res := &Result{}

	if r.cfg.DryRun {
		res.Skipped = len(remaining)
		res.Total = len(existing)
		r.log.Info("dry run, no requests sent", slog.Int("skipped", res.Skipped))
		return res, nil
	}

	// Step 3: process batches sequentially to respect the rate limit.
	for i, batch := range batches {
		r.log.Info("processing batch",
			slog.Int("batch", i+1),
			slog.Int("batches", len(batches)),
			slog.String("first", batch[0]),
			slog.String("last", batch[len(batch)-1]),
		)

		result, err := r.generateBatch(ctx, batch)
		if err != nil {
			return res, err
		}

		if len(result) > 0 {
			maps.Copy(existing, result)
			res.Generated += len(result)
			for _, lemma := range batch {
				if _, ok := result[lemma]; !ok {
					res.Failed = append(res.Failed, lemma)
				}
			}
			if err := r.store.Save(existing); err != nil {
				return res, fmt.Errorf("save card store: %w", err)
			}
			r.log.Info("batch complete",
				slog.Int("generated", len(result)),
				slog.Int("requested", len(batch)),
				slog.Int("store_total", len(existing)),
			)
		} else {
			res.Failed = append(res.Failed, batch...)
			r.log.Warn("batch failed entirely", slog.Int("lemmas", len(batch)))
		}

		// Rate-limit pause, skipped after the final batch.
		if i < len(batches)-1 {
			if err := r.sleep(ctx, pause); err != nil {
				return res, err
			}
		}
	}

	res.Total = len(existing)
	r.log.Info("run complete",
		slog.Int("generated", res.Generated),
		slog.Int("store_total", res.Total),
		slog.Int("failed", len(res.Failed)),
	)

	return res, nil
}

// generateBatch sends one batch to the service, retrying on parse errors,
// rate limits, and transient service errors. An empty mapping with a nil
// error means the batch is abandoned for this run; its lemmas stay absent
// from the store and get retried on the next run.
func (r *Runner) generateBatch(ctx context.Context, batch []string) (map[string][]domain.Card, error) {
	promptText := r.tmpl.Render(batch)

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		text, err := r.gen.Generate(ctx, promptText)
		if err == nil {
			payload, perr := parseResponse(text)
			if perr == nil {
				return r.validateBatch(batch, payload), nil
			}
			err = perr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait, reason := r.classify(err, attempt)
		r.log.Warn("attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.cfg.MaxAttempts),
			slog.String("reason", reason),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		// No attempt left, nothing to wait for.
		if attempt < r.cfg.MaxAttempts {
			if err := r.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return map[string][]domain.Card{}, nil
}

// validateBatch keeps only the requested lemmas that came back with at
// least one valid card. Extra lemmas in the payload are ignored.
func (r *Runner) validateBatch(batch []string, payload map[string]json.RawMessage) map[string][]domain.Card {
	result := make(map[string][]domain.Card)
	for _, lemma := range batch {
		raw, ok := payload[lemma]
		if !ok {
			r.log.Warn("lemma missing from response", slog.String("lemma", lemma))
			continue
		}
		cards := validCards(raw)
		if len(cards) == 0 {
			r.log.Warn("no valid cards for lemma", slog.String("lemma", lemma))
			continue
		}
		result[lemma] = cards
	}

	return result
}

// classify maps a failed attempt to its backoff delay. Rate limits honor
// the provider-suggested wait when the error carries one, with a linearly
// growing floor; everything else backs off exponentially from the base
// delay, parse errors included.
func (r *Runner) classify(err error, attempt int) (time.Duration, string) {
	var rle *provider.RateLimitError
	if errors.As(err, &rle) {
		wait := time.Duration(attempt) * r.cfg.RateLimitStep
		if rle.RetryAfter > 0 {
			if suggested := rle.RetryAfter + 5*time.Second; suggested > wait {
				wait = suggested
			}
		}
		return wait, "rate_limited"
	}

	backoff := r.cfg.BaseRetryDelay << (attempt - 1)
	var perr *ParseError
	if errors.As(err, &perr) {
		return backoff, "parse_error"
	}
	return backoff, "api_error"
}

// partition splits lemmas into contiguous batches of at most size elements.
// A non-positive size yields a single batch.
func partition(lemmas []string, size int) [][]string {
	if size <= 0 {
		size = len(lemmas)
	}
	var batches [][]string
	for i := 0; i < len(lemmas); i += size {
		batches = append(batches, lemmas[i:min(i+size, len(lemmas))])
	}
	return batches
}

// sleepCtx blocks for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
