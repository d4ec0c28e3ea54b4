package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/guildworks/guildhall/pkg/cost"
)

// costSummaryHandler handles GET /api/v1/costs/summary.
func (s *Server) costSummaryHandler(c *echo.Context) error {
	f := cost.Filter{
		AgentID: c.QueryParam("agentId"),
		Guild:   c.QueryParam("guild"),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		f.Limit = n
	}

	return c.JSON(http.StatusOK, s.costService.Summary(f))
}

// costByAgentHandler handles GET /api/v1/costs/agents/:id.
func (s *Server) costByAgentHandler(c *echo.Context) error {
	breakdown, err := s.costService.ByAgent(c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, breakdown)
}

// costByGuildHandler handles GET /api/v1/costs/guilds/:guild.
func (s *Server) costByGuildHandler(c *echo.Context) error {
	breakdown, err := s.costService.ByGuild(c.Param("guild"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, breakdown)
}

// costExportHandler handles GET /api/v1/costs/export.
func (s *Server) costExportHandler(c *echo.Context) error {
	return c.Blob(http.StatusOK, "text/csv", []byte(s.costService.ExportCSV()))
}
