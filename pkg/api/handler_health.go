package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/guildworks/guildhall/pkg/version"
)

// healthHandler handles GET /api/v1/health.
// Everything is in-memory, so the server is healthy once the catalog
// initialized; provider reachability is deliberately not probed here.
func (s *Server) healthHandler(c *echo.Context) error {
	stats := s.cfg.Stats()

	resp := &HealthResponse{
		Status:      "healthy",
		Initialized: true,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     version.GitCommit,
		Configuration: ConfigurationStats{
			Agents:    stats.Agents,
			Providers: stats.Providers,
		},
	}
	if s.planRegistry != nil {
		resp.Plans = PlanStats{
			Active:        s.planRegistry.ActiveCount(),
			ExecutedTotal: s.planRegistry.ExecutedTotal(),
		}
	}
	return c.JSON(http.StatusOK, resp)
}
