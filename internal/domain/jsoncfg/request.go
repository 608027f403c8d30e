// Package jsoncfg holds the JSON wire contract the web client submits when
// requesting generation, plus normalization and validation helpers shared by
// handlers and the worker.
package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"server/internal/domain"
)

// RequestJSON is the raw generation-request contract persisted to the
// generation_jobs row as jsonb.
type RequestJSON struct {
	Version        string   `json:"version"`
	PriorKnowledge []string `json:"prior_knowledge"`
	TargetLevel    string   `json:"target_level" validate:"omitempty,oneof=Auto Beginner Intermediate Advanced Master"`
	TargetLength   int      `json:"target_length" validate:"omitempty,oneof=200 400 600 800 1000"`
	SensoryModes   []string `json:"sensory_modes" validate:"required,min=1,max=4,dive,oneof=write type listen mermaid"`
	PrePrompt      string   `json:"pre_prompt" validate:"max=2000"`
	PostPrompt     string   `json:"post_prompt" validate:"max=2000"`
	WithSummary    bool     `json:"with_summary"`
	WithQuiz       bool     `json:"with_quiz"`
	Locale         string   `json:"locale"`
}

const (
	// DefaultRequestVersion is the contract version persisted for requests.
	DefaultRequestVersion = "2025-06"
	// DefaultLocale is applied when no locale preference is provided.
	DefaultLocale = "en"
)

// DefaultSensoryModes is used when the request omits modes entirely.
var DefaultSensoryModes = []string{"write", "type"}

var validate = validator.New()

// Normalize applies server defaults. Mode order is left exactly as the
// caller gave it; order influences which mode instructions the model sees
// first and must not be canonicalized.
func (r *RequestJSON) Normalize(preferredLocale string) {
	if r == nil {
		return
	}
	if r.Version == "" {
		r.Version = DefaultRequestVersion
	}
	if r.TargetLevel == "" {
		r.TargetLevel = string(domain.LevelAuto)
	}
	if len(r.SensoryModes) == 0 {
		r.SensoryModes = append([]string(nil), DefaultSensoryModes...)
	}
	for i, m := range r.SensoryModes {
		r.SensoryModes[i] = strings.ToLower(strings.TrimSpace(m))
	}
	for i, pk := range r.PriorKnowledge {
		r.PriorKnowledge[i] = strings.TrimSpace(pk)
	}
	r.PriorKnowledge = dropEmpty(r.PriorKnowledge)
	if r.Locale == "" {
		if preferredLocale != "" {
			r.Locale = preferredLocale
		} else {
			r.Locale = DefaultLocale
		}
	}
}

// Validate ensures the request satisfies the contract before persistence.
func (r RequestJSON) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("generation request: %w", err)
	}
	seen := map[string]struct{}{}
	for _, m := range r.SensoryModes {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("generation request: duplicate sensory mode %q", m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// ToDomain converts the wire contract into the pipeline's request value.
// Callers must Normalize and Validate first.
func (r RequestJSON) ToDomain() domain.GenerationRequest {
	modes := make([]domain.SensoryMode, 0, len(r.SensoryModes))
	for _, m := range r.SensoryModes {
		if parsed, err := domain.ParseSensoryMode(m); err == nil {
			modes = append(modes, parsed)
		}
	}
	return domain.GenerationRequest{
		PriorKnowledge: append([]string(nil), r.PriorKnowledge...),
		TargetLevel:    domain.TargetLevel(r.TargetLevel),
		TargetLength:   domain.TargetLength(r.TargetLength),
		SensoryModes:   modes,
		PrePrompt:      strings.TrimSpace(r.PrePrompt),
		PostPrompt:     strings.TrimSpace(r.PostPrompt),
		WithSummary:    r.WithSummary,
		WithQuiz:       r.WithQuiz,
	}
}

// MustMarshal serializes v, panicking on failure. Reserved for payloads the
// server constructed itself.
func MustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func dropEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
