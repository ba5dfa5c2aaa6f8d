//go:build integration

package queue

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hoferino/manda-platform/db"
	"github.com/hoferino/manda-platform/domain"
)

// setupQueue starts a Postgres container, applies the schema and returns a
// PostgresQueue plus teardown. Mirrors db.setupPostgresContainer; duplicated
// here since integration helpers aren't exported across packages.
func setupQueue(t *testing.T) (*PostgresQueue, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	pg, err := db.NewPostgresDB(ctx, connString)
	require.NoError(t, err)

	schema, err := os.ReadFile("../db/schema.sql")
	require.NoError(t, err)
	require.NoError(t, pg.Exec(ctx, string(schema)))

	q := NewPostgresQueue(pg)
	teardown := func() {
		pg.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}
	return q, teardown
}

func TestPostgresQueue_EnqueueDequeueComplete(t *testing.T) {
	q, teardown := setupQueue(t)
	defer teardown()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.Job{
		Name:    domain.JobParseDocument,
		Payload: map[string]interface{}{"document_id": "doc-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	jobs, err := q.Dequeue(ctx, domain.JobParseDocument, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobLeased, jobs[0].Status)
	assert.Equal(t, "doc-1", jobs[0].Payload["document_id"])

	require.NoError(t, q.Complete(ctx, id, nil))

	got, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobSucceeded, got.Status)
}

func TestPostgresQueue_DequeueSkipsLockedRows(t *testing.T) {
	q, teardown := setupQueue(t)
	defer teardown()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, domain.Job{Name: domain.JobParseDocument, Payload: map[string]interface{}{}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.Job{Name: domain.JobParseDocument, Payload: map[string]interface{}{}})
	require.NoError(t, err)

	first, err := q.Dequeue(ctx, domain.JobParseDocument, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := q.Dequeue(ctx, domain.JobParseDocument, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestPostgresQueue_FailReschedulesUntilMaxAttempts(t *testing.T) {
	q, teardown := setupQueue(t)
	defer teardown()
	ctx := context.Background()
	q.SetDefaults(domain.JobParseDocument, JobDefaults{RetryLimit: 2, RetryDelaySeconds: 0, RetryBackoff: false})

	id, err := q.Enqueue(ctx, domain.Job{Name: domain.JobParseDocument, Payload: map[string]interface{}{}})
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, id, "boom"))
	retried, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, retried.Status)
	assert.Equal(t, 1, retried.Attempts)

	require.NoError(t, q.Fail(ctx, id, "boom again"))
	final, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDeadLetter, final.Status)
	assert.Equal(t, "boom again", final.LastError)
}

func TestPostgresQueue_PerJobRetryOverrideWinsOverNameDefault(t *testing.T) {
	q, teardown := setupQueue(t)
	defer teardown()
	ctx := context.Background()
	q.SetDefaults(domain.JobParseDocument, JobDefaults{RetryLimit: 5, RetryDelaySeconds: 60, RetryBackoff: true})

	delay := 0
	noBackoff := false
	before := time.Now().UTC()
	id, err := q.Enqueue(ctx, domain.Job{
		Name:              domain.JobParseDocument,
		Payload:           map[string]interface{}{},
		RetryDelaySeconds: &delay,
		RetryBackoff:      &noBackoff,
	})
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, id, "boom"))
	retried, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, retried.Status)
	// A zero-second, no-backoff override must reschedule immediately rather
	// than at the name default's 60s*2^attempts delay.
	assert.WithinDuration(t, before, retried.RunAt, 5*time.Second)
}

func TestPostgresQueue_QueueCountsGroupsByNameAndStatus(t *testing.T) {
	q, teardown := setupQueue(t)
	defer teardown()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, domain.Job{Name: domain.JobParseDocument, Payload: map[string]interface{}{}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.Job{Name: domain.JobAnalyzeDocument, Payload: map[string]interface{}{}})
	require.NoError(t, err)

	counts, err := q.QueueCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.JobParseDocument][domain.JobQueued])
	assert.Equal(t, 1, counts[domain.JobAnalyzeDocument][domain.JobQueued])
}
