package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hoferino/manda-platform/domain"
)

type searchSimilarResponse struct {
	Results      []domain.SimilarChunkResult `json:"results"`
	TotalResults int                         `json:"total_results"`
}

// SearchSimilar implements GET /api/search/similar: embeds query with
// the configured EmbeddingAdapter, then ranks chunks by cosine similarity
// within the requesting organization (never across tenants).
func (h *Handlers) SearchSimilar(c echo.Context) error {
	ctx := c.Request().Context()

	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "query is required")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "limit must be an integer between 1 and 100")
		}
		limit = n
	}

	organizationID := c.Request().Header.Get("X-Organization-ID")
	if organizationID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "X-Organization-ID header is required")
	}

	var dealID, documentID *string
	if v := c.QueryParam("project_id"); v != "" {
		dealID = &v
	}
	if v := c.QueryParam("document_id"); v != "" {
		documentID = &v
	}

	vectors, _, err := h.deps.Embeddings.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		h.log.WithError(err).Warn("embedding failed for similarity search")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "embedding service unavailable")
	}

	results, err := h.deps.Relational.SearchSimilarChunks(ctx, organizationID, vectors[0], dealID, documentID, limit)
	if err != nil {
		h.log.WithError(err).Warn("similarity search query failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
	}

	return c.JSON(http.StatusOK, searchSimilarResponse{Results: results, TotalResults: len(results)})
}
