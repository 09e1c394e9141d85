package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newGeminiResponse(text string, tokensIn, tokensOut int) string {
	quoted, _ := json.Marshal(text)
	return fmt.Sprintf(`{
		"candidates": [{"content": {"role": "model", "parts": [{"text": %s}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": %d, "candidatesTokenCount": %d}
	}`, quoted, tokensIn, tokensOut)
}

func TestGeminiGenerate_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		w.Write([]byte(newGeminiResponse(`{"candidates": []}`, 900, 300)))
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL))

	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Model:     "gemini-2.0-flash",
		Prompt:    "analyze these commands",
		MaxTokens: 4096,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != `{"candidates": []}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensIn != 900 || resp.TokensOut != 300 {
		t.Errorf("tokens = %d/%d, want 900/300", resp.TokensIn, resp.TokensOut)
	}
}

func TestGeminiGenerate_RetriesOn429(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(newGeminiResponse("ok", 10, 5)))
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL), WithMaxRetries(3))

	resp, err := p.Generate(context.Background(), &GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGeminiGenerate_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL), WithMaxRetries(2))

	_, err := p.Generate(context.Background(), &GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T", err)
	}
	if perr.Kind != KindNetwork {
		t.Errorf("Kind = %s, want network", perr.Kind)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestGeminiGenerate_AuthFailureNotRetried(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL), WithMaxRetries(5))

	_, err := p.Generate(context.Background(), &GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v", err)
	}
	if perr.Kind != KindAuth {
		t.Errorf("Kind = %s, want auth", perr.Kind)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGeminiGenerate_NoAPIKey(t *testing.T) {
	p := &GeminiProvider{httpClient: &http.Client{}, baseURL: "http://unused", timeout: time.Second}

	if p.Available() {
		t.Error("Available() = true without key")
	}

	_, err := p.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindAuth {
		t.Errorf("error = %v, want auth kind", err)
	}
}

func TestGeminiGenerate_EmptyCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL))

	_, err := p.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindMalformed {
		t.Errorf("error = %v, want malformed kind", err)
	}
}

func TestGeminiGenerate_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(newGeminiResponse("late", 1, 1)))
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key", WithBaseURL(srv.URL),
		WithMaxRetries(0), WithTimeout(20*time.Millisecond))

	_, err := p.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "x"})
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindTimeout {
		t.Errorf("error = %v, want timeout kind", err)
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	got := EstimateCost("gemini-2.0-flash", 1_000_000, 1_000_000)
	want := 0.075 + 0.30
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("EstimateCost = %f, want %f", got, want)
	}

	// Unknown models use the fallback rate instead of zero
	if EstimateCost("gemini-99", 1_000_000, 0) == 0 {
		t.Error("unknown model must not cost zero")
	}
}

func TestErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind string
		want bool
	}{
		{KindAuth, false},
		{KindMalformed, false},
		{KindRateLimit, true},
		{KindTimeout, true},
		{KindNetwork, true},
	}
	for _, tt := range tests {
		e := &Error{Kind: tt.kind, Message: "x"}
		if e.Retryable() != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.kind, e.Retryable(), tt.want)
		}
	}
}
