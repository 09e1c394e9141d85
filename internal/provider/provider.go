// Package provider implements generative AI provider adapters for
// command-batch analysis.
package provider

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout is the default timeout for AI provider calls
const DefaultTimeout = 30 * time.Second

// Provider defines the interface for generative AI providers
type Provider interface {
	// Name returns the provider name (e.g., "gemini")
	Name() string

	// Available checks if the provider can be used (API key present)
	Available() bool

	// Generate sends a prompt and returns the raw model text plus usage
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single analysis call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// GenerateResponse carries the raw model output and usage accounting.
type GenerateResponse struct {
	Text      string
	TokensIn  int64
	TokensOut int64
	LatencyMs int64
}

// Error kinds classify provider failures so callers can decide what is
// retryable and what is fatal for the current pass.
const (
	KindAuth      = "auth"
	KindRateLimit = "rate_limit"
	KindTimeout   = "timeout"
	KindMalformed = "malformed"
	KindNetwork   = "network"
)

// Error is a classified provider failure.
type Error struct {
	Kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Auth and malformed
// failures never are.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindTimeout, KindNetwork:
		return true
	}
	return false
}
