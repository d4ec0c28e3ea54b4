package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failures. Adapters wrap ErrProvider around
// every failed call; the fallback chain wraps ErrProviderExhausted when no
// candidate answered.
var (
	ErrProvider          = errors.New("provider call failed")
	ErrProviderExhausted = errors.New("all fallback candidates failed")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrEmptyResponse     = errors.New("provider returned an empty response")
)

// ProviderErrorf wraps ErrProvider with provider/model context. Status is the
// HTTP status when known, 0 otherwise.
func ProviderErrorf(provider, model string, status int, cause error) error {
	if status > 0 {
		return fmt.Errorf("%w: %s (%s) HTTP %d: %v", ErrProvider, provider, model, status, cause)
	}
	return fmt.Errorf("%w: %s (%s): %v", ErrProvider, provider, model, cause)
}
