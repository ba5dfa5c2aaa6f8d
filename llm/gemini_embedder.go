package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/hoferino/manda-platform/common"
)

// geminiMaxBatchSize reflects the Gemini API's limit of 100 embed
// requests per batch.
const geminiMaxBatchSize = 100

// geminiEmbeddingDimensions matches the documented gemini-embedding-001
// output dimensionality.
const geminiEmbeddingDimensions = 3072

func int32Ptr(i int32) *int32 { return &i }

// GeminiEmbedder is the preferred EmbeddingAdapter. Its client is built the
// same way as GeminiAdapter's; Embed splits the input into batches of at
// most geminiMaxBatchSize and issues one EmbedContent call per batch,
// reporting usage through this adapter's Usage/cost accounting contract.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	log    *common.ContextLogger
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini embedding client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, log: common.ComponentLogger("gemini_embedder")}, nil
}

func (e *GeminiEmbedder) Name() string    { return fmt.Sprintf("gemini:%s", e.model) }
func (e *GeminiEmbedder) Dimensions() int { return geminiEmbeddingDimensions }

// Embed batches texts into chunks of at most geminiMaxBatchSize and issues
// one EmbedContent call per chunk, concatenating results in order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{Provider: "gemini", Model: e.model}, nil
	}

	start := time.Now()
	var all [][]float32
	for offset := 0; offset < len(texts); offset += geminiMaxBatchSize {
		end := offset + geminiMaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunkEmbeddings, err := e.embedChunk(ctx, texts[offset:end])
		if err != nil {
			return nil, Usage{}, fmt.Errorf("embed batch %d-%d: %w", offset, end, err)
		}
		all = append(all, chunkEmbeddings...)
	}

	inputTokens := 0
	for _, t := range texts {
		inputTokens += len(t) / 4
	}
	usage := Usage{
		Provider:    "gemini",
		Model:       e.model,
		InputTokens: inputTokens,
		LatencyMS:   time.Since(start).Milliseconds(),
	}
	return all, usage, nil
}

func (e *GeminiEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(geminiEmbeddingDimensions),
	})
	if err != nil {
		e.log.WithError(err).Warn("gemini embed_content failed")
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}
