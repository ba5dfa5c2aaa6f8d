// Package api is the thin HTTP surface over the pipeline: similarity
// search and the graph-ingest webhook, plus the statemanager observability
// routes.
// Follows the same APIKeyAuth middleware (the X-API-Key header check) and
// echo/v4 usage as the rest of this stack.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/coordinator"
)

// Config configures the HTTP server.
type Config struct {
	APIKey string
}

// NewServer builds an echo instance with logging middleware (on
// common.ContextLogger, matching the rest of the stack), X-API-Key
// authentication on every /api route, an unauthenticated /healthz, and
// the statemanager job-observability routes mounted under /api.
func NewServer(deps *coordinator.Dependencies, cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	log := common.ComponentLogger("api_server")

	e.Use(emw.Recover())
	e.Use(requestLogger(log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	group := e.Group("/api")
	if cfg.APIKey != "" {
		group.Use(apiKeyAuth(cfg.APIKey))
	}

	h := &Handlers{deps: deps, log: log}
	group.GET("/search/similar", h.SearchSimilar)
	group.POST("/graphiti/ingest", h.GraphitiIngest)
	deps.State.RegisterRoutes(group)

	return e
}

// apiKeyAuth rejects any /api request missing a matching X-API-Key header.
func apiKeyAuth(validKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get("X-API-Key")
			if key == "" || key != validKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			return next(c)
		}
	}
}

func requestLogger(log *common.ContextLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.WithFields(map[string]interface{}{
				"method":      c.Request().Method,
				"path":        c.Path(),
				"status":      c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request handled")
			return err
		}
	}
}

// Handlers holds the dependencies every API handler needs.
type Handlers struct {
	deps *coordinator.Dependencies
	log  *common.ContextLogger
}
