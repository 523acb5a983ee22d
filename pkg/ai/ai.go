package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by clients created without credentials.
var ErrNotConfigured = errors.New("ai client not configured")

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	MaxTokens     int      // Upper bound for generated tokens, 0 for provider default
	Schema        *ResponseSchema
}

// ResponseSchema asks the provider for structured JSON output.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      any
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	WallClockMs    int64   `json:"wall_clock_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature. Extraction runs at 0.3 to
// keep replies close to the document.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithResponseSchema requests JSON output matching schema, typically built
// with GenerateSchema. Providers without structured output ignore it.
func WithResponseSchema(name, description string, schema any) GenerateOption {
	return func(o *GenerateOptions) {
		o.Schema = &ResponseSchema{Name: name, Description: description, Schema: schema}
	}
}

// ApplyOptions folds opts over defaults.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// ChatClient generates text completions.
type ChatClient interface {
	GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// EmbeddingClient turns texts into vectors. The result is parallel to inputs.
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// GraphAIClient is implemented by every provider adapter.
type GraphAIClient interface {
	ChatClient
	EmbeddingClient
	ResetMetrics()
	GetMetrics() ModelMetrics
}
