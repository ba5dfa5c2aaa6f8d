package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/hoferino/manda-platform/common"
)

// GeminiAdapter is the Gemini-backed Adapter implementation, following the
// same genai client construction and call shape used elsewhere in this
// stack but generalized from single-purpose embedding to the full
// run(prompt, system, tier, schema) contract.
type GeminiAdapter struct {
	client      *genai.Client
	tierToModel map[ModelTier]string
	log         *common.ContextLogger
}

// NewGeminiAdapter constructs a client for apiKey and a model class
// configured by tierModels. Missing tiers fall back to "gemini-2.0-flash".
func NewGeminiAdapter(ctx context.Context, apiKey string, tierModels map[ModelTier]string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	resolved := map[ModelTier]string{
		TierFlash: "gemini-2.0-flash",
		TierPro:   "gemini-2.0-pro",
		TierLite:  "gemini-2.0-flash-lite",
	}
	for tier, model := range tierModels {
		if model != "" {
			resolved[tier] = model
		}
	}

	return &GeminiAdapter{client: client, tierToModel: resolved, log: common.ComponentLogger("gemini_adapter")}, nil
}

func (g *GeminiAdapter) Name() string {
	return "gemini"
}

func (g *GeminiAdapter) modelFor(tier ModelTier) string {
	if m, ok := g.tierToModel[tier]; ok {
		return m
	}
	return g.tierToModel[TierFlash]
}

// Run implements Adapter.Run. When structuredOutputSchema is non-nil the
// response MIME type is constrained to application/json and the response
// text is additionally parsed into Result.Structured.
func (g *GeminiAdapter) Run(ctx context.Context, prompt, system string, tier ModelTier, structuredOutputSchema map[string]interface{}) (Result, Usage, error) {
	model := g.modelFor(tier)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if structuredOutputSchema != nil {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	latency := time.Since(start)
	if err != nil {
		g.log.WithError(err).Warn("gemini generate_content failed")
		return Result{}, Usage{}, fmt.Errorf("gemini run failed: %w", err)
	}

	text := resp.Text()
	result := Result{Text: text}
	if structuredOutputSchema != nil {
		var parsed map[string]interface{}
		if jsonErr := json.Unmarshal([]byte(text), &parsed); jsonErr == nil {
			result.Structured = parsed
		}
	}

	usage := Usage{Provider: "gemini", Model: model, LatencyMS: latency.Milliseconds()}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return result, usage, nil
}
