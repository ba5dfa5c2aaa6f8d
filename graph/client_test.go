package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
)

func TestEnsureSchema_RunsOnlyOncePerClient(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	repo.On("EnsureSchema", mock.Anything).Return(nil).Once()
	c := NewClient(repo, locks)

	require.NoError(t, c.EnsureSchema(context.Background()))
	require.NoError(t, c.EnsureSchema(context.Background()))
	repo.AssertExpectations(t)
}

func TestAddEpisode_ScopesGroupIDAndAcquiresLock(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	locks.On("AcquireLock", mock.Anything, "graph:group:org-1:deal-1", lockTTL).Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, "graph:group:org-1:deal-1").Return(nil)
	repo.On("AddEpisode", mock.Anything, "org-1:deal-1", mock.MatchedBy(func(e domain.Episode) bool {
		return e.GroupID == "org-1:deal-1"
	})).Return(nil)

	c := NewClient(repo, locks)
	err := c.AddEpisode(context.Background(), "org-1", "deal-1", domain.Episode{Source: domain.EpisodeSourceQA})
	require.NoError(t, err)
	repo.AssertExpectations(t)
	locks.AssertExpectations(t)
}

func TestAddEpisode_WrapsRepoErrorAsConnectionError(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	locks.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, mock.Anything).Return(nil)
	repo.On("AddEpisode", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	c := NewClient(repo, locks)
	err := c.AddEpisode(context.Background(), "org-1", "deal-1", domain.Episode{})

	var connErr *GraphitiConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Error(), "connection refused")
}

func TestAddEpisode_WaitsForLockThenProceeds(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	locks.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
	locks.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()
	locks.On("ReleaseLock", mock.Anything, mock.Anything).Return(nil)
	repo.On("AddEpisode", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	c := NewClient(repo, locks)
	err := c.AddEpisode(context.Background(), "org-1", "deal-1", domain.Episode{})
	require.NoError(t, err)
	locks.AssertNumberOfCalls(t, "AcquireLock", 2)
}

func TestAddEpisode_ReturnsContextErrorWhenLockNeverAcquired(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	locks.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	c := NewClient(repo, locks)
	err := c.AddEpisode(ctx, "org-1", "deal-1", domain.Episode{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	repo.AssertNotCalled(t, "AddEpisode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_ScopesByGroupID(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	want := []repository.SearchResult{{EntityID: "e1", Name: "Acme"}}
	repo.On("Search", mock.Anything, "org-1:deal-1", "acme", 5).Return(want, nil)

	c := NewClient(repo, locks)
	got, err := c.Search(context.Background(), "org-1", "deal-1", "acme", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSyncFinding_PropagatesError(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	repo.On("SyncFinding", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("node missing"))

	c := NewClient(repo, locks)
	err := c.SyncFinding(context.Background(), "org-1", "deal-1", domain.Finding{}, "doc-node-1")
	assert.Error(t, err)
}

func TestClose_DelegatesToRepository(t *testing.T) {
	repo := &fakeGraphRepository{}
	locks := &fakeCacheRepository{}
	repo.On("Close", mock.Anything).Return(nil)

	c := NewClient(repo, locks)
	require.NoError(t, c.Close(context.Background()))
	repo.AssertExpectations(t)
}
