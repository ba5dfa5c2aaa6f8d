// Package llm provides the LLM and embedding capability interfaces
// plus their model-chain (primary+fallback), cost-tracking, and retry
// behavior. Stage handlers depend only on the interfaces defined here;
// provider wiring lives in gemini.go/voyage_embedder.go.
package llm

import (
	"context"
	"time"
)

// ModelTier selects the model class a caller wants, independent of which
// concrete model a provider maps it to — tier-to-model mapping is
// configuration, not code.
type ModelTier string

const (
	TierFlash ModelTier = "FLASH"
	TierPro   ModelTier = "PRO"
	TierLite  ModelTier = "LITE"
)

// Usage reports token accounting for a single LLM call, persisted verbatim
// to the usage log by Recorder.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Provider     string
	Model        string
	LatencyMS    int64
}

// Result is the outcome of a Run call. Structured is populated when a
// StructuredOutputSchema was supplied and the provider returned JSON that
// validated against it; Text always holds the raw response.
type Result struct {
	Text       string
	Structured map[string]interface{}
}

// Adapter is the capability interface stage handlers call through; it
// never exposes a provider-specific type.
type Adapter interface {
	// Run sends prompt (with optional system instruction) to the model
	// selected by tier, optionally constraining output to
	// structuredOutputSchema (a JSON Schema object; nil for free text).
	Run(ctx context.Context, prompt string, system string, tier ModelTier, structuredOutputSchema map[string]interface{}) (Result, Usage, error)
	Name() string
}

// EmbeddingAdapter embeds a batch of texts into vectors. Preferred and
// fallback providers may return different dimensionalities; callers must
// not assume two calls return vectors of the same length.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, texts []string) ([][]float32, Usage, error)
	Dimensions() int
	Name() string
}

// DefaultLLMTimeout is the adapter-level HTTP timeout for LLM calls.
const DefaultLLMTimeout = 30 * time.Second
