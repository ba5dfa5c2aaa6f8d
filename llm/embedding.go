package llm

import (
	"context"
	"fmt"

	"github.com/hoferino/manda-platform/common"
)

// EmbeddingChain wraps a preferred EmbeddingAdapter with an optional
// fallback, same shape as ModelChain but without the LLM retry policy's
// structured-output concerns: embedding calls are idempotent and cheap to
// just retry once against the fallback on any error. The fallback provider
// may return a different dimensionality; the downstream schema accommodates
// that.
type EmbeddingChain struct {
	preferred EmbeddingAdapter
	fallback  EmbeddingAdapter
	log       *common.ContextLogger
}

func NewEmbeddingChain(preferred, fallback EmbeddingAdapter) *EmbeddingChain {
	return &EmbeddingChain{preferred: preferred, fallback: fallback, log: common.ComponentLogger("embedding_chain")}
}

func (c *EmbeddingChain) Name() string {
	if c.fallback == nil {
		return c.preferred.Name()
	}
	return fmt.Sprintf("%s+%s", c.preferred.Name(), c.fallback.Name())
}

func (c *EmbeddingChain) Dimensions() int {
	return c.preferred.Dimensions()
}

func (c *EmbeddingChain) Embed(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	vectors, usage, err := c.preferred.Embed(ctx, texts)
	if err == nil {
		return vectors, usage, nil
	}
	if c.fallback == nil {
		return nil, Usage{}, err
	}

	c.log.WithFields(map[string]interface{}{
		"preferred": c.preferred.Name(),
		"fallback":  c.fallback.Name(),
		"error":     err.Error(),
	}).Warn("embedding chain falling back")

	return c.fallback.Embed(ctx, texts)
}
