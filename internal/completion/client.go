// Package completion talks to the schema-constrained LLM providers. A
// client takes role-tagged messages plus a JSON schema and returns raw JSON
// the provider claims conforms; the pipeline still validates every byte.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"golang.org/x/time/rate"

	"server/internal/promptgen"
)

// Request is one schema-strict completion call.
type Request struct {
	Messages   []promptgen.Message
	SchemaName string
	Schema     *jsonschema.Schema
}

// Client abstracts a completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
	Model() string
}

// ProviderError reports a failed provider call. Transient errors (timeouts,
// rate limits, 5xx) may be retried; everything else must not be.
type ProviderError struct {
	Provider  string
	Status    int
	Transient bool
	Message   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status=%d transient=%t)", e.Provider, e.Message, e.Status, e.Transient)
}

// ErrTokenBudget is returned when the prompt exceeds the configured token
// ceiling. Never retryable; the prompt will not shrink on its own.
var ErrTokenBudget = errors.New("completion: prompt exceeds token ceiling")

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// transientStatus classifies an HTTP status code.
func transientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// guard applies the shared outbound protections: token ceiling first (free),
// then the rate limiter (may block on ctx).
type guard struct {
	limiter *rate.Limiter
	counter *TokenCounter
	ceiling int
}

func newGuard(counter *TokenCounter, ceiling, ratePerMin int) *guard {
	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	return &guard{
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), ratePerMin),
		counter: counter,
		ceiling: ceiling,
	}
}

func (g *guard) admit(ctx context.Context, messages []promptgen.Message) error {
	if g == nil {
		return nil
	}
	if g.counter != nil && g.ceiling > 0 {
		if n := g.counter.Count(messages); n > g.ceiling {
			return fmt.Errorf("%w: %d > %d", ErrTokenBudget, n, g.ceiling)
		}
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// extractJSONFragment peels markdown fences and surrounding prose off a
// model response, keeping the outermost JSON value.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
