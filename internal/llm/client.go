package llm

import "context"

// Client is the capability boundary for generative text. Implementations
// must return a classified error (ErrProviderUnavailable, ErrRateLimited) on
// transport failure rather than empty text, so callers can distinguish a
// declined answer from a failed call.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
