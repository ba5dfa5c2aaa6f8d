// Package queue implements the durable at-least-once job queue over
// the relational store. Handlers communicate exclusively by enqueueing
// successor jobs onto this queue; it is the pipeline edge.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hoferino/manda-platform/db"
	"github.com/hoferino/manda-platform/domain"
)

// ErrNotFound is returned by GetJob when no row matches.
var ErrNotFound = errors.New("queue: job not found")

// JobDefaults holds the default enqueue options applied per job name.
// Explicit options passed to Enqueue override these on a per-field basis.
type JobDefaults struct {
	RetryLimit        int
	RetryDelaySeconds int
	RetryBackoff      bool
	Priority          int
}

var defaultDefaults = JobDefaults{RetryLimit: 3, RetryDelaySeconds: 30, RetryBackoff: true, Priority: 0}

// PostgresQueue implements the job queue over a `jobs` table (see
// db/schema.sql), adapted from a Redis-backed queue's
// Enqueue/Dequeue/Complete/Fail/GetQueueDepth shape but re-targeted to a
// polling dequeue using `SELECT ... FOR UPDATE SKIP LOCKED` since this
// queue must be durable and survive a worker crash mid-lease.
type PostgresQueue struct {
	db       *db.PostgresDB
	defaults map[domain.JobName]JobDefaults
}

func NewPostgresQueue(pg *db.PostgresDB) *PostgresQueue {
	return &PostgresQueue{db: pg, defaults: make(map[domain.JobName]JobDefaults)}
}

// SetDefaults overrides the default retry/priority options for name.
func (q *PostgresQueue) SetDefaults(name domain.JobName, d JobDefaults) {
	q.defaults[name] = d
}

func (q *PostgresQueue) defaultsFor(name domain.JobName) JobDefaults {
	if d, ok := q.defaults[name]; ok {
		return d
	}
	return defaultDefaults
}

// Enqueue inserts a new job in the `queued` state. Zero-value Priority and
// MaxAttempts fall back to the per-name defaults registered via
// SetDefaults; a zero RunAt means the job is runnable now.
func (q *PostgresQueue) Enqueue(ctx context.Context, job domain.Job) (string, error) {
	d := q.defaultsFor(job.Name)

	if job.ID == "" {
		job.ID = domain.NewID()
	}
	priority := job.Priority
	if priority == 0 {
		priority = d.Priority
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = d.RetryLimit
	}
	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	err = q.db.Exec(ctx, `
		INSERT INTO jobs (id, name, payload, status, priority, attempts, max_attempts, run_at,
		                  retry_delay_seconds, retry_backoff)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
	`, job.ID, job.Name, payloadJSON, domain.JobQueued, priority, maxAttempts, runAt,
		job.RetryDelaySeconds, job.RetryBackoff)
	if err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", job.Name, err)
	}
	return job.ID, nil
}

// Dequeue atomically selects up to batchSize rows ready to run, flips them
// to leased, and returns them. Two concurrent dequeues never return the
// same row because of SKIP LOCKED.
func (q *PostgresQueue) Dequeue(ctx context.Context, name domain.JobName, batchSize int, visibilityTimeout time.Duration) ([]domain.Job, error) {
	tx, err := q.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, name, payload, status, priority, attempts, max_attempts, run_at,
		       retry_delay_seconds, retry_backoff, leased_until, last_error, created_at, updated_at
		FROM jobs
		WHERE name = $1 AND status = 'queued' AND run_at <= now()
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, name, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select ready jobs: %w", err)
	}

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ready jobs: %w", err)
	}

	leasedUntil := time.Now().UTC().Add(visibilityTimeout)
	for i := range jobs {
		if _, err := tx.Exec(ctx, `
			UPDATE jobs SET status = $1, leased_until = $2, updated_at = now() WHERE id = $3
		`, domain.JobLeased, leasedUntil, jobs[i].ID); err != nil {
			return nil, fmt.Errorf("lease job %s: %w", jobs[i].ID, err)
		}
		jobs[i].Status = domain.JobLeased
		jobs[i].LeasedUntil = &leasedUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit dequeue tx: %w", err)
	}
	return jobs, nil
}

func scanJob(rows pgx.Rows) (domain.Job, error) {
	var (
		j           domain.Job
		payloadJSON []byte
	)
	if err := rows.Scan(&j.ID, &j.Name, &payloadJSON, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxAttempts, &j.RunAt, &j.RetryDelaySeconds, &j.RetryBackoff,
		&j.LeasedUntil, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return j, fmt.Errorf("scan job: %w", err)
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &j.Payload); err != nil {
			return j, fmt.Errorf("unmarshal job payload: %w", err)
		}
	}
	return j, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, jobID string, output map[string]interface{}) error {
	err := q.db.Exec(ctx, `
		UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2
	`, domain.JobSucceeded, jobID)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail applies the backoff policy: `delay = retry_delay *
// 2^retry_count` when backoff is enabled, else a constant delay. A job's own
// retry_delay_seconds/retry_backoff, set at enqueue time, override the
// per-name default on a per-field basis. When attempts reach max_attempts
// the job becomes terminal.
func (q *PostgresQueue) Fail(ctx context.Context, jobID string, errMessage string) error {
	var (
		attempts, maxAttempts int
		name                  domain.JobName
		retryDelaySeconds     *int
		retryBackoff          *bool
	)
	err := q.db.QueryRow(ctx, `
		SELECT name, attempts, max_attempts, retry_delay_seconds, retry_backoff FROM jobs WHERE id = $1
	`, jobID).Scan(&name, &attempts, &maxAttempts, &retryDelaySeconds, &retryBackoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job for failure: %w", err)
	}

	attempts++
	if attempts < maxAttempts {
		d := q.defaultsFor(name)
		delaySeconds := d.RetryDelaySeconds
		if retryDelaySeconds != nil {
			delaySeconds = *retryDelaySeconds
		}
		backoff := d.RetryBackoff
		if retryBackoff != nil {
			backoff = *retryBackoff
		}
		delay := time.Duration(delaySeconds) * time.Second
		if backoff {
			delay = time.Duration(float64(delaySeconds)*math.Pow(2, float64(attempts))) * time.Second
		}
		err := q.db.Exec(ctx, `
			UPDATE jobs SET status = $1, attempts = $2, run_at = $3, last_error = $4, updated_at = now()
			WHERE id = $5
		`, domain.JobQueued, attempts, time.Now().UTC().Add(delay), errMessage, jobID)
		if err != nil {
			return fmt.Errorf("schedule retry for job %s: %w", jobID, err)
		}
		return nil
	}

	err = q.db.Exec(ctx, `
		UPDATE jobs SET status = $1, attempts = $2, last_error = $3, updated_at = now() WHERE id = $4
	`, domain.JobDeadLetter, attempts, errMessage, jobID)
	if err != nil {
		return fmt.Errorf("dead-letter job %s: %w", jobID, err)
	}
	return nil
}

func (q *PostgresQueue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, name, payload, status, priority, attempts, max_attempts, run_at,
		       retry_delay_seconds, retry_backoff, leased_until, last_error, created_at, updated_at
		FROM jobs WHERE id = $1
	`, jobID)

	var (
		j           domain.Job
		payloadJSON []byte
	)
	err := row.Scan(&j.ID, &j.Name, &payloadJSON, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxAttempts, &j.RunAt, &j.RetryDelaySeconds, &j.RetryBackoff,
		&j.LeasedUntil, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal job payload: %w", err)
		}
	}
	return &j, nil
}

func (q *PostgresQueue) QueueCounts(ctx context.Context) (map[domain.JobName]map[domain.JobStatus]int, error) {
	rows, err := q.db.Query(ctx, `SELECT name, status, count(*) FROM jobs GROUP BY name, status`)
	if err != nil {
		return nil, fmt.Errorf("query queue counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JobName]map[domain.JobStatus]int)
	for rows.Next() {
		var (
			name   domain.JobName
			status domain.JobStatus
			n      int
		)
		if err := rows.Scan(&name, &status, &n); err != nil {
			return nil, fmt.Errorf("scan queue count row: %w", err)
		}
		if counts[name] == nil {
			counts[name] = make(map[domain.JobStatus]int)
		}
		counts[name][status] = n
	}
	return counts, rows.Err()
}
