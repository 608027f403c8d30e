package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geminiDefaultTimeout = 60 * time.Second
	geminiProviderName   = "gemini"
)

// GeminiOptions configures the Gemini REST client.
type GeminiOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Temperature  float64
	TokenCeiling int
	RatePerMin   int
	HTTPClient   *http.Client
	Counter      *TokenCounter
}

// GeminiClient issues schema-strict generateContent calls against the
// Gemini v1beta REST API.
type GeminiClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
	guard       *guard
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	CandidateCount   int             `json:"candidateCount"`
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiClient{
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		client:      client,
		guard:       newGuard(opts.Counter, opts.TokenCeiling, opts.RatePerMin),
	}, nil
}

func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := g.guard.admit(ctx, req.Messages); err != nil {
		return nil, err
	}
	payload := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:      g.temperature,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}
	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("gemini: marshal schema: %w", err)
		}
		payload.GenerationConfig.ResponseSchema = raw
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case "assistant":
			payload.Contents = append(payload.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			payload.Contents = append(payload.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: geminiProviderName, Transient: true, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:  geminiProviderName,
			Status:    resp.StatusCode,
			Transient: transientStatus(resp.StatusCode),
			Message:   "generateContent returned " + resp.Status,
		}
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: geminiProviderName, Transient: true, Message: "decode response: " + err.Error()}
	}
	text := extractText(out)
	if text == "" {
		return nil, &ProviderError{Provider: geminiProviderName, Transient: true, Message: "empty candidate text"}
	}
	fragment := extractJSONFragment(text)
	if fragment == "" {
		return nil, &ProviderError{Provider: geminiProviderName, Transient: true, Message: "no JSON in candidate text"}
	}
	return json.RawMessage(fragment), nil
}

func (g *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func extractText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

var _ Client = (*GeminiClient)(nil)
