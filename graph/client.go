package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
)

// GraphitiConnectionError wraps transport/auth failures from the
// underlying graph store, distinguishing them from ordinary not-found or
// validation errors.
type GraphitiConnectionError struct {
	Cause error
}

func (e *GraphitiConnectionError) Error() string {
	return fmt.Sprintf("graphiti connection error: %v", e.Cause)
}

func (e *GraphitiConnectionError) Unwrap() error { return e.Cause }

const lockTTL = 30 * time.Second
const lockPollInterval = 50 * time.Millisecond

// Client wraps a repository.GraphRepository with the isolation invariant
// (every call scoped by group_id) and the ordering guarantee that
// episodes within the same group_id are never ingested concurrently.
// Schema setup is run explicitly once at startup via EnsureSchema and
// guarded by a latch so repeated calls (e.g. in tests) are cheap no-ops.
type Client struct {
	repo       repository.GraphRepository
	locks      repository.CacheRepository
	log        *common.ContextLogger
	schemaDone bool
}

func NewClient(repo repository.GraphRepository, locks repository.CacheRepository) *Client {
	return &Client{repo: repo, locks: locks, log: common.ComponentLogger("graph_client")}
}

// EnsureSchema runs the adapter's one-time index setup exactly once per
// Client instance; subsequent calls are no-ops. Index creation runs once
// on first use of the singleton and tolerates already-exists conditions.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if c.schemaDone {
		return nil
	}
	if err := c.repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}
	c.schemaDone = true
	return nil
}

// AddEpisode ingests one episode into the organizationID:dealID namespace,
// serialized against any other in-flight AddEpisode for the same group via
// a short-lived advisory lock: the adapter must not parallelize add_episode
// calls for the same group.
func (c *Client) AddEpisode(ctx context.Context, organizationID, dealID string, episode domain.Episode) error {
	groupID := domain.GroupID(organizationID, dealID)
	episode.GroupID = groupID

	unlock, err := c.acquireGroupLock(ctx, groupID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.repo.AddEpisode(ctx, groupID, episode); err != nil {
		return &GraphitiConnectionError{Cause: err}
	}
	return nil
}

// Search runs a hybrid lookup scoped to organizationID:dealID. Two tenants
// sharing a dealID but differing organizationID never see each other's
// results because groupID includes both.
func (c *Client) Search(ctx context.Context, organizationID, dealID, query string, numResults int) ([]repository.SearchResult, error) {
	groupID := domain.GroupID(organizationID, dealID)
	results, err := c.repo.Search(ctx, groupID, query, numResults)
	if err != nil {
		return nil, fmt.Errorf("search group %s: %w", groupID, err)
	}
	return results, nil
}

// SyncFinding mirrors a persisted Finding into the graph as a best-effort
// derived index; callers must not fail their stage on this method's error.
func (c *Client) SyncFinding(ctx context.Context, organizationID, dealID string, finding domain.Finding, documentNodeID string) error {
	groupID := domain.GroupID(organizationID, dealID)
	if err := c.repo.SyncFinding(ctx, groupID, finding, documentNodeID); err != nil {
		return fmt.Errorf("sync finding to graph: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.repo.Close(ctx)
}

// acquireGroupLock blocks (bounded by ctx) until it wins the per-group
// advisory lock, then returns a release function.
func (c *Client) acquireGroupLock(ctx context.Context, groupID string) (func(), error) {
	key := "graph:group:" + groupID
	for {
		ok, err := c.locks.AcquireLock(ctx, key, lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire group lock %s: %w", groupID, err)
		}
		if ok {
			return func() {
				if releaseErr := c.locks.ReleaseLock(context.Background(), key); releaseErr != nil {
					c.log.WithError(releaseErr).Warn("failed to release graph group lock")
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
