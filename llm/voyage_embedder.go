package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hoferino/manda-platform/common"
)

const voyageAPIURL = "https://api.voyageai.com/v1/embeddings"

// VoyageEmbedder is the fallback EmbeddingAdapter. No maintained Voyage AI SDK is used
// elsewhere in this stack, so this is a hand-rolled client over net/http —
// the single justified standard-library-only adapter (see DESIGN.md).
type VoyageEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	log        *common.ContextLogger
}

func NewVoyageEmbedder(apiKey, model string, dimensions int) *VoyageEmbedder {
	if model == "" {
		model = "voyage-3"
	}
	if dimensions == 0 {
		dimensions = 1024
	}
	return &VoyageEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: DefaultLLMTimeout},
		log:        common.ComponentLogger("voyage_embedder"),
	}
}

func (v *VoyageEmbedder) Name() string    { return fmt.Sprintf("voyage:%s", v.model) }
func (v *VoyageEmbedder) Dimensions() int { return v.dimensions }

type voyageRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type voyageResponseData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type voyageResponse struct {
	Data  []voyageResponseData `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (v *VoyageEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{Provider: "voyage", Model: v.model}, nil
	}

	body, err := json.Marshal(voyageRequest{Input: texts, Model: v.model})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("marshal voyage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, voyageAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("build voyage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	start := time.Now()
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("voyage request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("read voyage response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		v.log.WithFields(map[string]interface{}{"status": resp.StatusCode}).Warn("voyage embed failed")
		return nil, Usage{}, fmt.Errorf("voyage embed failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed voyageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, Usage{}, fmt.Errorf("unmarshal voyage response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}

	usage := Usage{
		Provider:    "voyage",
		Model:       v.model,
		InputTokens: parsed.Usage.TotalTokens,
		LatencyMS:   time.Since(start).Milliseconds(),
	}
	return vectors, usage, nil
}
