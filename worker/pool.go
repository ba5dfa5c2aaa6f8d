// Package worker runs a pool of goroutines against the durable job queue,
// one or more per registered job name, each leasing a job to completion
// before leasing the next. Generalized from a named-queue worker pool that
// keys workers by an arbitrary queue-name string with a fixed worker count
// per queue; this one keys them by domain.JobName and dispatches through
// the stages.Handler registered for that name.
package worker

import (
	"context"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/stages"
	"github.com/hoferino/manda-platform/statemanager"
)

// Config configures the pool: how many goroutines lease jobs for each
// registered job name, the dequeue batch size, and the lease's visibility
// timeout. A job name absent from Concurrency gets DefaultConcurrency
// goroutines.
type Config struct {
	Concurrency         map[domain.JobName]int
	BatchSize           int
	VisibilityTimeout   time.Duration
	PollInterval        time.Duration
}

// DefaultConcurrency is the per-job-name worker count used when Config
// doesn't override it.
const DefaultConcurrency = 5

// DefaultConfig returns the default pool configuration, with
// detect-contradictions pinned to a single worker: pairs within a
// deal share one LLM client per invocation, and the stage dedups via an
// atomic insert rather than a lock, so running more than one worker for
// this job name would only waste LLM calls on duplicate comparisons, not
// cause incorrect results.
func DefaultConfig() Config {
	return Config{
		Concurrency: map[domain.JobName]int{
			domain.JobDetectContradictions: 1,
		},
		BatchSize:         1,
		VisibilityTimeout: 5 * time.Minute,
		PollInterval:      2 * time.Second,
	}
}

// Pool owns one goroutine set per registered job name.
type Pool struct {
	queue    repository.QueueRepository
	handlers map[domain.JobName]stages.Handler
	config   Config
	log      *common.ContextLogger
	state    *statemanager.Manager

	stopChan chan struct{}
}

// NewPool builds a Pool. Register handlers before calling Start. state may
// be nil, in which case leases are simply not tracked for observability.
func NewPool(queue repository.QueueRepository, config Config, state *statemanager.Manager) *Pool {
	return &Pool{
		queue:    queue,
		handlers: make(map[domain.JobName]stages.Handler),
		config:   config,
		log:      common.ComponentLogger("worker_pool"),
		state:    state,
		stopChan: make(chan struct{}),
	}
}

// Register binds a Handler to a job name. Call before Start.
func (p *Pool) Register(name domain.JobName, h stages.Handler) {
	p.handlers[name] = h
}

// Start launches Concurrency[name] (or DefaultConcurrency) goroutines per
// registered job name. Returns immediately; call Stop to shut down.
func (p *Pool) Start(ctx context.Context) {
	var total int
	for name, handler := range p.handlers {
		count := p.config.Concurrency[name]
		if count <= 0 {
			count = DefaultConcurrency
		}
		for i := 0; i < count; i++ {
			total++
			go p.run(ctx, name, handler, i)
		}
	}
	p.log.WithField("worker_count", total).Info("worker pool started")
}

// Stop signals every worker goroutine to finish its in-flight job and
// exit; it does not cancel ctx, so in-flight jobs run to completion.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.log.Info("worker pool stop requested")
}

func (p *Pool) run(ctx context.Context, name domain.JobName, handler stages.Handler, workerID int) {
	log := p.log.WithFields(map[string]interface{}{"job_name": string(name), "worker_id": workerID})
	batchSize := p.config.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	pollInterval := p.config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	visibility := p.config.VisibilityTimeout
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}

	for {
		select {
		case <-p.stopChan:
			log.Info("worker stopped")
			return
		case <-ctx.Done():
			log.Info("worker stopped (context canceled)")
			return
		default:
		}

		jobs, err := p.queue.Dequeue(ctx, name, batchSize, visibility)
		if err != nil {
			log.WithError(err).Warn("dequeue failed")
			sleep(ctx, p.stopChan, pollInterval)
			continue
		}
		if len(jobs) == 0 {
			sleep(ctx, p.stopChan, pollInterval)
			continue
		}

		for _, job := range jobs {
			p.process(ctx, log, handler, job)
		}
	}
}

// process runs job to completion through handler, then reports the
// outcome back to the queue.
func (p *Pool) process(ctx context.Context, log *common.ContextLogger, handler stages.Handler, job domain.Job) {
	jobLog := log.WithField("job_id", job.ID)
	start := time.Now()
	if p.state != nil {
		p.state.StartJob(job.ID, string(job.Name))
	}

	err := handler.Handle(ctx, job)

	if p.state != nil {
		p.state.CompleteJob(job.ID, err)
	}

	duration := time.Since(start)
	if err != nil {
		jobLog.WithError(err).WithField("duration_ms", duration.Milliseconds()).Warn("job failed")
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			jobLog.WithError(failErr).Error("failed to record job failure")
		}
		return
	}

	jobLog.WithField("duration_ms", duration.Milliseconds()).Info("job succeeded")
	if completeErr := p.queue.Complete(ctx, job.ID, nil); completeErr != nil {
		jobLog.WithError(completeErr).Error("failed to record job completion")
	}
}

func sleep(ctx context.Context, stopChan chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-stopChan:
	case <-timer.C:
	}
}
