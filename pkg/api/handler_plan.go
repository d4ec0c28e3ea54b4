package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listPlansHandler handles GET /api/v1/plans.
func (s *Server) listPlansHandler(c *echo.Context) error {
	plans, err := s.workflowService.List(c.QueryParam("status"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, plans)
}

// getPlanHandler handles GET /api/v1/plans/:id.
func (s *Server) getPlanHandler(c *echo.Context) error {
	planID := c.Param("id")
	if planID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan id is required")
	}

	plan, err := s.workflowService.Get(planID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

// cancelPlanHandler handles POST /api/v1/plans/:id/cancel.
func (s *Server) cancelPlanHandler(c *echo.Context) error {
	planID := c.Param("id")
	if planID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan id is required")
	}

	if err := s.workflowService.Cancel(planID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &CancelResponse{Success: true, PlanID: planID})
}
