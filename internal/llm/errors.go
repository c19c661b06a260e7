package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrProviderUnavailable = errors.New("language model provider unavailable")
	ErrRateLimited         = errors.New("language model provider rate limited")
)

// Classify maps a transport failure onto the provider error taxonomy so
// callers can tell a rate limit from an outage. The original error stays in
// the chain.
func Classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
