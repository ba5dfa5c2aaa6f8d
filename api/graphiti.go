package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
)

type graphitiIngestRequest struct {
	DealID         string `json:"deal_id"`
	Content        string `json:"content"`
	SourceType     string `json:"source_type"`
	MessageContext string `json:"message_context"`
}

type graphitiIngestResponse struct {
	Success         bool    `json:"success"`
	EpisodeCount     int     `json:"episode_count"`
	ElapsedMS        int64   `json:"elapsed_ms"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

var validSourceTypes = map[string]bool{
	"correction":   true,
	"confirmation": true,
	"new_info":     true,
}

// confidenceForSourceType maps the webhook's source_type to the episode
// confidence tier: an explicit correction is trusted like a confirmed Q&A
// answer, a confirmation like an in-context chat assertion, and new_info
// (unverified) at the document-extraction baseline.
func confidenceForSourceType(sourceType string) float64 {
	switch sourceType {
	case "correction":
		return domain.QAConfidence
	case "confirmation":
		return domain.ChatConfidence
	default:
		return domain.DocumentConfidence
	}
}

// GraphitiIngest implements POST /api/graphiti/ingest: admits a single
// user-asserted fact directly into the temporal knowledge graph, bypassing
// the document pipeline entirely.
func (h *Handlers) GraphitiIngest(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	var req graphitiIngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DealID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "deal_id is required")
	}
	if len(strings.TrimSpace(req.Content)) < 10 {
		return echo.NewHTTPError(http.StatusBadRequest, "content must be at least 10 characters")
	}
	if !validSourceTypes[req.SourceType] {
		return echo.NewHTTPError(http.StatusBadRequest, "source_type must be one of: correction, confirmation, new_info")
	}

	deal, err := h.deps.Relational.GetDeal(ctx, req.DealID)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "deal not found")
	}
	if err != nil {
		h.log.WithError(err).Warn("graphiti ingest: lookup deal failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}

	now := time.Now().UTC()
	episode := domain.Episode{
		Source:      domain.EpisodeSourceWebhook,
		Name:        "webhook-" + req.SourceType + "-" + shortID(req.DealID),
		Content:     req.Content,
		ReferenceID: req.DealID,
		Confidence:  confidenceForSourceType(req.SourceType),
		OccurredAt:  now,
		IngestedAt:  now,
	}
	if err := h.deps.Graph.AddEpisode(ctx, deal.OrganizationID, deal.ID, episode); err != nil {
		h.log.WithError(err).Warn("graphiti ingest: add episode failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "graph ingest failed")
	}

	return c.JSON(http.StatusOK, graphitiIngestResponse{
		Success:      true,
		EpisodeCount: 1,
		ElapsedMS:    time.Since(start).Milliseconds(),
		// AddEpisode performs no billed LLM call directly (entity
		// extraction happens asynchronously downstream); there is no
		// usage to report for this path.
		EstimatedCostUSD: 0,
	})
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
