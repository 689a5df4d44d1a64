package video

import (
	"fmt"
	"strings"
)

// DefaultDurationSeconds replaces any duration outside SupportedDurations.
const DefaultDurationSeconds = 6

// DefaultRatio is used when the requested aspect ratio is not recognised.
const DefaultRatio = "1280:720"

// SupportedDurations is the provider's allow-list of clip lengths.
var SupportedDurations = []int{4, 6, 8}

var canonicalRatios = map[string]struct{}{
	"1280:720":  {},
	"720:1280":  {},
	"1920:1080": {},
	"1080:1920": {},
	"960:960":   {},
}

var ratioMnemonics = map[string]string{
	"16:9":      "1280:720",
	"landscape": "1280:720",
	"9:16":      "720:1280",
	"portrait":  "720:1280",
	"1:1":       "960:960",
	"square":    "960:960",
}

// CoerceDuration returns d when it is supported, otherwise the default.
// The bool is false when a correction was applied.
func CoerceDuration(d *int) (int, bool) {
	if d == nil {
		return DefaultDurationSeconds, false
	}
	for _, s := range SupportedDurations {
		if *d == s {
			return s, true
		}
	}
	return DefaultDurationSeconds, false
}

// CoerceRatio maps a canonical token or mnemonic onto a canonical token.
func CoerceRatio(ratio string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(ratio))
	key = strings.ReplaceAll(key, "x", ":")
	key = strings.ReplaceAll(key, "*", ":")
	if _, ok := canonicalRatios[key]; ok {
		return key, true
	}
	if canonical, ok := ratioMnemonics[key]; ok {
		return canonical, true
	}
	return DefaultRatio, false
}

// Resolve applies defaults and coercions to a request.
func Resolve(req SubmitRequest, defaultModel string) Submission {
	sub := Submission{
		Prompt: strings.TrimSpace(req.Prompt),
		Model:  strings.TrimSpace(req.Model),
		Audio:  req.Audio,
	}
	if sub.Model == "" {
		sub.Model = defaultModel
	}

	duration, ok := CoerceDuration(req.DurationSeconds)
	sub.DurationSeconds = duration
	if !ok {
		requested := "none"
		if req.DurationSeconds != nil {
			requested = fmt.Sprintf("%d", *req.DurationSeconds)
		}
		sub.Corrections = append(sub.Corrections, fmt.Sprintf("duration %s -> %d", requested, duration))
	}

	ratio, ok := CoerceRatio(req.AspectRatio)
	sub.Ratio = ratio
	if !ok {
		sub.Corrections = append(sub.Corrections, fmt.Sprintf("ratio %q -> %s", req.AspectRatio, ratio))
	}
	return sub
}
