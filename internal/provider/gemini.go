package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// GeminiProvider implements the Provider interface against the Google
// generative language REST API.
type GeminiProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	timeout    time.Duration
}

// GeminiOption customizes a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) GeminiOption {
	return func(p *GeminiProvider) { p.maxRetries = n }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) GeminiOption {
	return func(p *GeminiProvider) { p.timeout = d }
}

// NewGeminiProvider creates a Gemini provider. An empty apiKey falls back
// to the GEMINI_API_KEY and GOOGLE_API_KEY environment variables.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) *GeminiProvider {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	p := &GeminiProvider{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		maxRetries: 2,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Available checks if an API key is configured
func (p *GeminiProvider) Available() bool {
	return p.apiKey != ""
}

// Wire types for the generateContent API

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates,omitempty"`
	UsageMetadata *usageMetadata    `json:"usageMetadata,omitempty"`
	Error         *apiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate sends a prompt to the generateContent endpoint. Transient
// failures (429, 5xx, network errors) are retried with exponential
// backoff and jitter up to the configured retry limit.
func (p *GeminiProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if !p.Available() {
		return nil, &Error{Kind: KindAuth, Message: "no API key configured; set GEMINI_API_KEY or GOOGLE_API_KEY"}
	}

	body, err := json.Marshal(&geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	})
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "failed to marshal request", Err: err}
	}

	start := time.Now()
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)

	var lastErr *Error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(calculateBackoff(attempt)):
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, Message: "cancelled while backing off", Err: ctx.Err()}
			}
		}

		resp, perr := p.doOnce(ctx, url, body)
		if perr == nil {
			resp.LatencyMs = time.Since(start).Milliseconds()
			return resp, nil
		}
		if !perr.Retryable() {
			return nil, perr
		}
		lastErr = perr
	}

	return nil, &Error{Kind: lastErr.Kind, Message: "retries exhausted", Err: lastErr}
}

func (p *GeminiProvider) doOnce(ctx context.Context, url string, body []byte) (*GenerateResponse, *Error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindAuth, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimit, Message: "status 429"}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "failed to decode response", Err: err}
	}
	if result.Error != nil {
		return nil, classifyAPIError(result.Error)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Kind: KindMalformed, Message: "response has no candidates"}
	}

	out := &GenerateResponse{
		Text: result.Candidates[0].Content.Parts[0].Text,
	}
	if result.UsageMetadata != nil {
		out.TokensIn = int64(result.UsageMetadata.PromptTokenCount)
		out.TokensOut = int64(result.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func classifyAPIError(e *apiError) *Error {
	msg := fmt.Sprintf("API error %d (%s): %s", e.Code, e.Status, e.Message)
	switch {
	case e.Code == 401 || e.Code == 403:
		return &Error{Kind: KindAuth, Message: msg}
	case e.Code == 429:
		return &Error{Kind: KindRateLimit, Message: msg}
	case e.Code >= 500:
		return &Error{Kind: KindNetwork, Message: msg}
	}
	return &Error{Kind: KindMalformed, Message: msg}
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}
