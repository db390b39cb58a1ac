// Package gemini adapts the Google Gen AI client to the TextGenerator port.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/mjoubert/clozecards/internal/provider"
)

// retryInRe matches the wait hint Gemini embeds in quota error messages,
// e.g. "Please retry in 21.5s".
var retryInRe = regexp.MustCompile(`(?i)retry in ([\d.]+)s`)

// Provider generates text with the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// New creates a Provider for the given API key and model name.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Provider{
		client: client,
		model:  model,
		log:    logger.With("adapter", "gemini"),
	}, nil
}

// Generate sends the prompt and returns the response text. Quota errors are
// reported as *provider.RateLimitError carrying the service-suggested wait
// when the error message contains one.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	p.log.DebugContext(ctx, "gemini request",
		slog.String("model", p.model),
		slog.Int("prompt_bytes", len(prompt)),
	)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		if rlErr := asRateLimit(err); rlErr != nil {
			return "", rlErr
		}
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}

	p.log.DebugContext(ctx, "gemini response", slog.Int("response_bytes", len(text)))
	return text, nil
}

// asRateLimit converts a quota-exhaustion API error to *provider.RateLimitError.
// Returns nil for every other error.
func asRateLimit(err error) *provider.RateLimitError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	if apiErr.Code != http.StatusTooManyRequests && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}
	return &provider.RateLimitError{
		RetryAfter: suggestedWait(apiErr.Message),
		Err:        err,
	}
}

// suggestedWait extracts the "retry in Ns" hint from an error message.
// Returns zero when the message carries no hint.
func suggestedWait(msg string) time.Duration {
	m := retryInRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
