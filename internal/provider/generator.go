// Package provider defines the port to the external text-generation service.
package provider

import (
	"context"
	"fmt"
	"time"
)

// TextGenerator produces a text completion for a prompt. The service behind
// it is opaque: it accepts a prompt string, returns a text response, and may
// fail or rate-limit.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RateLimitError reports that the service rejected a call because the quota
// is exhausted. RetryAfter carries the wait the service suggested, zero when
// it suggested none.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry in %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
