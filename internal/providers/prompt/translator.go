package prompt

import (
	"context"
	"errors"
)

const (
	geminiProviderName = "gemini"
	openAIProviderName = "openai"
)

// ErrEmptyTranslation is returned when a provider answered without text.
var ErrEmptyTranslation = errors.New("empty translation")

// TranslateRequest is one system-instruction + user-text call to a
// text-generation provider.
type TranslateRequest struct {
	System      string
	Text        string
	Temperature float64
}

// Translator rewrites text through a text-generation provider. Implementations
// return the raw model output; cleanup and fallback policy live in Normalizer.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
	Name() string
}
