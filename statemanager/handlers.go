package statemanager

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes adds job-state observability endpoints to an Echo group.
func (m *Manager) RegisterRoutes(g *echo.Group) {
	g.GET("/jobs", m.handleListJobs)
	g.GET("/jobs/:id", m.handleGetJob)
	g.GET("/jobs/stats", m.handleGetStats)
}

func (m *Manager) handleListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, m.ListJobs())
}

func (m *Manager) handleGetJob(c echo.Context) error {
	id := c.Param("id")
	job := m.GetJob(id)
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, job)
}

func (m *Manager) handleGetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, m.Stats())
}
