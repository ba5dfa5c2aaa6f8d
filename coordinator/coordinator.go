package coordinator

import (
	"context"

	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/stages"
	"github.com/hoferino/manda-platform/worker"
)

// Coordinator owns the worker pool and the stage handler registry built
// from Dependencies, following a component-logger-plus-Start/Stop lifecycle
// shape; this type has no network transport of its own — job dispatch is
// entirely queue-driven.
type Coordinator struct {
	deps *Dependencies
	pool *worker.Pool
}

// New builds a Coordinator and registers every stage handler by job name.
func New(deps *Dependencies) *Coordinator {
	pool := worker.NewPool(deps.Queue, deps.Config.WorkerConfig, deps.State)

	sd := deps.StageDeps
	pool.Register(domain.JobParseDocument, stages.NewParseHandler(sd))
	pool.Register(domain.JobIngestGraphiti, stages.NewIngestGraphHandler(sd))
	pool.Register(domain.JobAnalyzeDocument, stages.NewAnalyzeHandler(sd))
	pool.Register(domain.JobExtractFinancials, stages.NewExtractFinancialsHandler(sd))
	pool.Register(domain.JobDetectContradictions, stages.NewDetectContradictionsHandler(sd))
	pool.Register(domain.JobIngestQA, stages.NewIngestQAHandler(sd))
	pool.Register(domain.JobIngestChat, stages.NewIngestChatHandler(sd))
	pool.Register(domain.JobAnalyzeDealFeedback, stages.NewAnalyzeFeedbackHandler(sd))
	pool.Register(domain.JobAnalyzeAllDealFeedback, stages.NewAnalyzeFeedbackAllHandler(sd))

	return &Coordinator{deps: deps, pool: pool}
}

// Start launches the worker pool. Returns immediately; call Stop to shut
// down gracefully.
func (c *Coordinator) Start(ctx context.Context) {
	c.pool.Start(ctx)
}

// Stop signals every worker goroutine to finish its in-flight job and
// exit, then releases every backend connection.
func (c *Coordinator) Stop() {
	c.pool.Stop()
	c.deps.Close()
}
