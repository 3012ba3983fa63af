package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no AI backend credentials are set.
var ErrNotConfigured = errors.New("no AI provider configured")

// Provider defines the interface for report summary backends.
type Provider interface {
	Name() string
	// SummarizeReport turns the structured monthly report facts into a
	// short natural-language summary for the gym operator.
	SummarizeReport(ctx context.Context, reportFacts string) (string, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// NewProvider picks a backend based on available credentials. OpenAI wins
// when both are configured.
func NewProvider(ctx context.Context, openAIToken, geminiAPIKey string) (Provider, error) {
	if openAIToken != "" {
		return NewOpenAIProvider(openAIToken), nil
	}
	if geminiAPIKey != "" {
		return NewGeminiProvider(ctx, geminiAPIKey)
	}
	return nil, ErrNotConfigured
}
