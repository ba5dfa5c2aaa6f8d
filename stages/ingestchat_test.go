package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/graph"
)

func TestIngestChatHandler_AddsEpisodeAtChatConfidence(t *testing.T) {
	graphRepo := &fakeGraphRepository{}
	graphRepo.On("AddEpisode", mock.Anything, "org-1:deal-1", mock.MatchedBy(func(e domain.Episode) bool {
		return e.Source == domain.EpisodeSourceChat &&
			e.Confidence == domain.ChatConfidence &&
			e.ReferenceID == "msg-1" &&
			e.Name == "chat-fact-msg-1" &&
			e.Content == "Revenue grew 20% YoY"
	})).Return(nil)

	deps := &Deps{Graph: graph.NewClient(graphRepo, alwaysUnlockedCache{})}
	h := NewIngestChatHandler(deps)

	err := h.Handle(context.Background(), domain.Job{Payload: map[string]interface{}{
		"message_id":      "msg-1",
		"deal_id":         "deal-1",
		"organization_id": "org-1",
		"fact_content":    "Revenue grew 20% YoY",
	}})

	require.NoError(t, err)
	graphRepo.AssertExpectations(t)
}

func TestIngestChatHandler_MissingMessageIDIsPermanentError(t *testing.T) {
	graphRepo := &fakeGraphRepository{}
	deps := &Deps{Graph: graph.NewClient(graphRepo, alwaysUnlockedCache{})}
	h := NewIngestChatHandler(deps)

	err := h.Handle(context.Background(), domain.Job{ID: "job-1", Payload: map[string]interface{}{"deal_id": "deal-1"}})
	require.Error(t, err)
	graphRepo.AssertNotCalled(t, "AddEpisode", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestChatHandler_PropagatesGraphError(t *testing.T) {
	graphRepo := &fakeGraphRepository{}
	graphRepo.On("AddEpisode", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("graphiti down"))

	deps := &Deps{Graph: graph.NewClient(graphRepo, alwaysUnlockedCache{})}
	h := NewIngestChatHandler(deps)

	err := h.Handle(context.Background(), domain.Job{Payload: map[string]interface{}{
		"message_id": "msg-1", "deal_id": "deal-1", "organization_id": "org-1",
	}})
	require.Error(t, err)
}
