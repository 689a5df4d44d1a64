package prompt

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"
)

type fakeTranslator struct {
	out   string
	err   error
	calls int
	last  TranslateRequest
}

func (f *fakeTranslator) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	f.calls++
	f.last = req
	return f.out, f.err
}

func (f *fakeTranslator) Name() string { return "fake" }

func TestNormalizeTranslatesKorean(t *testing.T) {
	tr := &fakeTranslator{out: `"A cat playing around, cinematic"`}
	n := NewNormalizer(NormalizerOptions{Translator: tr})

	res := n.NormalizeDetailed(context.Background(), "고양이가 뛰어노는 영상")
	if !res.Translated {
		t.Fatalf("expected translation, fallback=%q", res.FallbackReason)
	}
	if res.Text != "A cat playing around, cinematic" {
		t.Fatalf("Text = %q", res.Text)
	}
	if res.Language != language.Korean {
		t.Fatalf("Language = %s, want ko", res.Language)
	}
	if tr.last.System != TranslationInstruction {
		t.Fatalf("system instruction not sent")
	}
	if tr.last.Temperature > 0.3 {
		t.Fatalf("temperature = %v, want low", tr.last.Temperature)
	}
}

func TestNormalizePassThroughOnFailure(t *testing.T) {
	const original = "한글 프롬프트"
	cases := []struct {
		name   string
		tr     Translator
		reason string
	}{
		{name: "translator_error", tr: &fakeTranslator{err: errors.New("boom")}, reason: FallbackTranslateErr},
		{name: "mock_marker", tr: &fakeTranslator{out: "[MOCK] translated text"}, reason: FallbackPlaceholder},
		{name: "mock_response", tr: &fakeTranslator{out: "This is a mock response"}, reason: FallbackPlaceholder},
		{name: "empty_result", tr: &fakeTranslator{out: "   "}, reason: FallbackEmptyResult},
		{name: "quoted_empty", tr: &fakeTranslator{out: `""`}, reason: FallbackEmptyResult},
		{name: "no_translator", tr: nil, reason: FallbackNoTranslator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured string
			n := NewNormalizer(NormalizerOptions{
				Translator: tc.tr,
				OnFallback: func(reason string, err error) { captured = reason },
			})
			got := n.Normalize(context.Background(), original)
			if got != original {
				t.Fatalf("Normalize = %q, want original %q", got, original)
			}
			if captured != tc.reason {
				t.Fatalf("fallback reason = %q, want %q", captured, tc.reason)
			}
		})
	}
}

func TestNormalizeSkipsEnglishAndBlank(t *testing.T) {
	tr := &fakeTranslator{out: "should not be used"}
	n := NewNormalizer(NormalizerOptions{Translator: tr})

	for _, in := range []string{"", "   ", "A dog surfing at sunset"} {
		if got := n.Normalize(context.Background(), in); got != in {
			t.Fatalf("Normalize(%q) = %q", in, got)
		}
	}
	if tr.calls != 0 {
		t.Fatalf("translator called %d times for non-CJK input", tr.calls)
	}
}

func TestNormalizeCancelledContext(t *testing.T) {
	tr := &fakeTranslator{out: "translated"}
	n := NewNormalizer(NormalizerOptions{Translator: tr})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := n.NormalizeDetailed(ctx, "猫が遊ぶ")
	if res.Text != "猫が遊ぶ" || res.FallbackReason != FallbackContextClosed {
		t.Fatalf("unexpected result %+v", res)
	}
	if tr.calls != 0 {
		t.Fatal("translator should not be called with a closed context")
	}
}

func TestNilNormalizerIsIdentity(t *testing.T) {
	var n *Normalizer
	if got := n.Normalize(context.Background(), "고양이"); got != "고양이" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestDetectScript(t *testing.T) {
	cases := []struct {
		in   string
		tag  language.Tag
		want bool
	}{
		{in: "고양이", tag: language.Korean, want: true},
		{in: "가", tag: language.Korean, want: true},
		{in: "ねこが走る", tag: language.Japanese, want: true},
		{in: "猫が遊ぶ", tag: language.Japanese, want: true},
		{in: "一只猫在玩", tag: language.Chinese, want: true},
		{in: "a cat, 4k", tag: language.Und, want: false},
		{in: "café crème", tag: language.Und, want: false},
	}
	for _, tc := range cases {
		tag, ok := DetectScript(tc.in)
		if ok != tc.want || tag != tc.tag {
			t.Fatalf("DetectScript(%q) = %s,%t want %s,%t", tc.in, tag, ok, tc.tag, tc.want)
		}
	}
}

func TestStripEnclosingQuotes(t *testing.T) {
	cases := map[string]string{
		`"hello"`:     "hello",
		`'hello'`:     "hello",
		"“hello”":     "hello",
		"「hello」":     "hello",
		`""hello""`:   `"hello"`,
		`"unbalanced`: `"unbalanced`,
		`"`:           `"`,
		"plain":       "plain",
	}
	for in, want := range cases {
		if got := stripEnclosingQuotes(in); got != want {
			t.Fatalf("stripEnclosingQuotes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTranslationCodeFence(t *testing.T) {
	got := sanitizeTranslation("```\n\"A quiet forest at dawn\"\n```")
	if got != "A quiet forest at dawn" {
		t.Fatalf("sanitizeTranslation = %q", got)
	}
}
