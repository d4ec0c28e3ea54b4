package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// compileWorkflowHandler handles POST /api/v1/workflows/compile.
func (s *Server) compileWorkflowHandler(c *echo.Context) error {
	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	plan, err := s.workflowService.Compile(req.Text, req.DefaultAgentID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

// executeWorkflowHandler handles POST /api/v1/workflows/execute.
// Blocks until the plan reaches a terminal state.
func (s *Server) executeWorkflowHandler(c *echo.Context) error {
	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	plan, err := s.workflowService.Execute(c.Request().Context(), req.Text, req.DefaultAgentID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, plan)
}
