package llm

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hoferino/manda-platform/common"
)

// fallbackTrigger matches the error classes that fall through from the
// primary model to the fallback model: HTTP 4xx/5xx, rate limits, timeouts.
var fallbackTrigger = regexp.MustCompile(`(?i)4\d\d|5\d\d|rate.?limit|429|timeout|timed out`)

// retryableInAdapter matches the narrower set of errors the adapter itself
// retries against a single model before giving up or falling back:
// rate-limit and server-error classes only. Authentication and
// malformed-response errors are excluded and therefore never retried here.
var retryableInAdapter = regexp.MustCompile(`(?i)rate.?limit|429|5\d\d|server.?error|service.?unavailable`)

const adapterMaxAttempts = 3

// ModelChain wraps a primary Adapter with an optional fallback, applying
// the adapter-level retry policy to the primary before falling back.
type ModelChain struct {
	primary  Adapter
	fallback Adapter
	log      *common.ContextLogger
}

func NewModelChain(primary, fallback Adapter) *ModelChain {
	return &ModelChain{primary: primary, fallback: fallback, log: common.ComponentLogger("model_chain")}
}

func (c *ModelChain) Name() string {
	if c.fallback == nil {
		return c.primary.Name()
	}
	return fmt.Sprintf("%s+%s", c.primary.Name(), c.fallback.Name())
}

func (c *ModelChain) Run(ctx context.Context, prompt, system string, tier ModelTier, schema map[string]interface{}) (Result, Usage, error) {
	result, usage, err := c.runWithRetry(ctx, c.primary, prompt, system, tier, schema)
	if err == nil {
		return result, usage, nil
	}

	if c.fallback == nil || !fallbackTrigger.MatchString(err.Error()) {
		return Result{}, Usage{}, err
	}

	c.log.WithFields(map[string]interface{}{
		"primary":          c.primary.Name(),
		"fallback":         c.fallback.Name(),
		"triggering_error": err.Error(),
	}).Warn("llm model chain falling back")

	return c.runWithRetry(ctx, c.fallback, prompt, system, tier, schema)
}

// runWithRetry applies exponential backoff for up to adapterMaxAttempts,
// but only for errors matching retryableInAdapter; every other error
// returns immediately.
func (c *ModelChain) runWithRetry(ctx context.Context, a Adapter, prompt, system string, tier ModelTier, schema map[string]interface{}) (Result, Usage, error) {
	var lastErr error
	for attempt := 0; attempt < adapterMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return Result{}, Usage{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, usage, err := a.Run(ctx, prompt, system, tier, schema)
		if err == nil {
			return result, usage, nil
		}
		lastErr = err
		if !retryableInAdapter.MatchString(err.Error()) {
			return Result{}, Usage{}, err
		}
	}
	return Result{}, Usage{}, fmt.Errorf("%s: exhausted %d attempts: %w", a.Name(), adapterMaxAttempts, lastErr)
}
