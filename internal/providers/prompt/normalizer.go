package prompt

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"mentorapi/internal/infra"
)

// TranslationInstruction is sent as the system message on every translation call.
const TranslationInstruction = "You translate prompts for an AI text-to-video generator into English. " +
	"Keep the original tone and intent, phrase it as a vivid, cinematic visual description, " +
	"and reply with the translated prompt only: no quotes, notes, or extra commentary."

const translationTemperature = 0.2

// Fallback reasons reported through logs and NormalizerOptions.OnFallback.
const (
	FallbackNoTranslator  = "no_translator"
	FallbackTranslateErr  = "translate_error"
	FallbackEmptyResult   = "empty_result"
	FallbackPlaceholder   = "placeholder_result"
	FallbackContextClosed = "context_closed"
)

var placeholderMarkers = []string{
	"[mock",
	"mock response",
	"mock translation",
	"placeholder",
	"lorem ipsum",
}

type NormalizerOptions struct {
	Translator Translator
	Logger     *infra.Logger
	OnFallback func(reason string, err error)
}

// Normalizer detects CJK/Hangul prompts and rewrites them into English.
// It never fails: every problem degrades to returning the input unchanged.
type Normalizer struct {
	translator Translator
	logger     *infra.Logger
	onFallback func(reason string, err error)
}

// Result describes what Normalize did with one prompt.
type Result struct {
	Text           string
	Translated     bool
	Language       language.Tag
	FallbackReason string
}

func NewNormalizer(opts NormalizerOptions) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Normalizer{
		translator: opts.Translator,
		logger:     logger,
		onFallback: opts.OnFallback,
	}
}

// Normalize returns the prompt to send to the video provider.
func (n *Normalizer) Normalize(ctx context.Context, text string) string {
	return n.NormalizeDetailed(ctx, text).Text
}

func (n *Normalizer) NormalizeDetailed(ctx context.Context, text string) Result {
	res := Result{Text: text, Language: language.Und}
	if strings.TrimSpace(text) == "" {
		return res
	}
	tag, ok := DetectScript(text)
	if !ok {
		return res
	}
	res.Language = tag

	if n == nil || n.translator == nil {
		return n.fallback(res, FallbackNoTranslator, nil)
	}
	if err := ctx.Err(); err != nil {
		return n.fallback(res, FallbackContextClosed, err)
	}

	out, err := n.translator.Translate(ctx, TranslateRequest{
		System:      TranslationInstruction,
		Text:        norm.NFC.String(text),
		Temperature: translationTemperature,
	})
	if err != nil {
		return n.fallback(res, FallbackTranslateErr, err)
	}
	cleaned := sanitizeTranslation(out)
	if cleaned == "" {
		return n.fallback(res, FallbackEmptyResult, nil)
	}
	if isPlaceholder(cleaned) {
		return n.fallback(res, FallbackPlaceholder, nil)
	}

	n.logger.Debug().
		Str("provider", n.translator.Name()).
		Str("language", tag.String()).
		Msg("prompt: translated")
	res.Text = cleaned
	res.Translated = true
	return res
}

func (n *Normalizer) fallback(res Result, reason string, err error) Result {
	res.FallbackReason = reason
	if n == nil {
		return res
	}
	evt := n.logger.Warn().Str("reason", reason).Str("language", res.Language.String())
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("prompt: translation skipped, using original text")
	if n.onFallback != nil {
		n.onFallback(reason, err)
	}
	return res
}

// DetectScript reports whether text contains Hangul, kana or Han characters
// and which language that script most likely belongs to. Hangul wins over
// kana, kana wins over Han, since Korean and Japanese text routinely embed
// Han characters.
func DetectScript(text string) (language.Tag, bool) {
	var hasKana, hasHan bool
	for _, r := range norm.NFC.String(text) {
		switch {
		case unicode.Is(unicode.Hangul, r):
			return language.Korean, true
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			hasKana = true
		case unicode.Is(unicode.Han, r):
			hasHan = true
		}
	}
	switch {
	case hasKana:
		return language.Japanese, true
	case hasHan:
		return language.Chinese, true
	default:
		return language.Und, false
	}
}

func sanitizeTranslation(raw string) string {
	text := trimCodeFence(raw)
	text = strings.TrimSpace(text)
	return stripEnclosingQuotes(text)
}

func isPlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
