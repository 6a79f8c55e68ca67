package translate

import "context"

// Translator renders text into a target language. Implementations must honor
// context cancellation so callers can bound the call.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Noop is used when translation is disabled. It reports every call as failed
// so callers deliver the original text.
type Noop struct{}

func (Noop) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return "", ErrDisabled
}
