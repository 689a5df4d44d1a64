package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenAITranslatorSendsInstruction(t *testing.T) {
	var captured openAIChatRequest
	var auth string
	translator, err := NewOpenAITranslator(OpenAIOptions{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			auth = r.Header.Get("Authorization")
			if r.URL.Path != "/v1/chat/completions" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode body: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"A cat at play"}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewOpenAITranslator returned error: %v", err)
	}
	out, err := translator.Translate(context.Background(), TranslateRequest{System: "sys", Text: "고양이", Temperature: 0.2})
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if out != "A cat at play" {
		t.Fatalf("out = %q", out)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", auth)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "sys" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if captured.Temperature != 0.2 {
		t.Fatalf("temperature = %v", captured.Temperature)
	}
	if captured.Model != defaultOpenAIModel {
		t.Fatalf("model = %q", captured.Model)
	}
}

func TestOpenAITranslatorErrors(t *testing.T) {
	cases := []struct {
		name string
		rt   roundTripFunc
	}{
		{name: "transport", rt: func(*http.Request) (*http.Response, error) { return nil, errors.New("boom") }},
		{name: "status", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`), nil
		}},
		{name: "no_choices", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
		}},
		{name: "bad_json", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `not json`), nil
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			translator, err := NewOpenAITranslator(OpenAIOptions{APIKey: "k", HTTPClient: &http.Client{Transport: tc.rt}})
			if err != nil {
				t.Fatalf("NewOpenAITranslator returned error: %v", err)
			}
			if _, err := translator.Translate(context.Background(), TranslateRequest{Text: "x"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewOpenAITranslatorRequiresKey(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIOptions{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNormalizeOpenAIModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		input  string
		model  string
		reason string
	}{
		{name: "exact_default", input: "gpt-4o-mini", model: "gpt-4o-mini", reason: ""},
		{name: "exact_free", input: "gpt-3.5-turbo", model: "gpt-3.5-turbo", reason: ""},
		{name: "alias_short", input: "gpt-3.5", model: "gpt-3.5-turbo", reason: "alias"},
		{name: "alias_spaces", input: "GPT4o Mini", model: "gpt-4o-mini", reason: "alias"},
		{name: "unsupported", input: "gpt-4.1", model: "gpt-4o-mini", reason: "defaulted"},
		{name: "empty", input: "", model: "gpt-4o-mini", reason: ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotModel, gotReason := normalizeOpenAIModel(tc.input)
			if gotModel != tc.model {
				t.Fatalf("model = %q, want %q", gotModel, tc.model)
			}
			if gotReason != tc.reason {
				t.Fatalf("reason = %q, want %q", gotReason, tc.reason)
			}
		})
	}
}

func TestNewOpenAITranslatorWarnsOnUnsupportedModel(t *testing.T) {
	var capturedReason, capturedDetail string
	_, err := NewOpenAITranslator(OpenAIOptions{
		APIKey: "dummy",
		Model:  "gpt-4.1",
		OnWarning: func(reason, detail string) {
			capturedReason = reason
			capturedDetail = detail
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedReason != "model_defaulted" {
		t.Fatalf("warning reason = %q, want %q", capturedReason, "model_defaulted")
	}
	if capturedDetail == "" {
		t.Fatal("expected warning detail to be set")
	}
}

func TestGeminiTranslator(t *testing.T) {
	var captured geminiRequest
	var key string
	translator, err := NewGeminiTranslator(GeminiOptions{
		APIKey: "g-key",
		Model:  "gemini-1.5-flash",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			key = r.Header.Get("x-goog-api-key")
			if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent") {
				t.Errorf("path = %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode body: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"A quiet harbor"}]}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiTranslator returned error: %v", err)
	}
	out, err := translator.Translate(context.Background(), TranslateRequest{System: "sys", Text: "조용한 항구", Temperature: 0.2})
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if out != "A quiet harbor" {
		t.Fatalf("out = %q", out)
	}
	if key != "g-key" {
		t.Fatalf("api key header = %q", key)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("system instruction missing: %+v", captured.SystemInstruction)
	}
}

func TestGeminiTranslatorEmptyCandidates(t *testing.T) {
	translator, err := NewGeminiTranslator(GeminiOptions{
		APIKey: "g-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiTranslator returned error: %v", err)
	}
	_, err = translator.Translate(context.Background(), TranslateRequest{Text: "x"})
	if !errors.Is(err, ErrEmptyTranslation) {
		t.Fatalf("err = %v, want ErrEmptyTranslation", err)
	}
}
