package completion

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"server/internal/promptgen"
)

// TokenCounter estimates prompt size before dispatch so oversized prompts
// fail locally instead of burning a paid call.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter builds an encoder for the model, falling back to the
// gpt-4o encoding for models tiktoken does not know (Gemini included — the
// estimate only needs to be in the right ballpark).
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			return nil, fmt.Errorf("completion: token encoding: %w", err)
		}
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the total token estimate across all messages.
func (c *TokenCounter) Count(messages []promptgen.Message) int {
	if c == nil || c.enc == nil {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += len(c.enc.Encode(m.Content, nil, nil))
	}
	return total
}
