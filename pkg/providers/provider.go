package providers

import (
	"context"
	"fmt"
)

// LLMProvider is the single generative capability this system consumes:
// prompt in, raw text out. Reply generation and structured trait judgment
// both go through it.
type LLMProvider interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
	DefaultModel() string
}

// ProviderError reports an unreachable or misbehaving generation backend.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider: %s: %v", e.Message, e.Err)
	}
	return "provider: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }
