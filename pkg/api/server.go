// Package api exposes the HTTP surface: REST handlers, the WebSocket
// upgrade endpoint, and service-error mapping.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/services"
)

// Server is the HTTP server over the service layer.
type Server struct {
	cfg             *config.Config
	agentService    *services.AgentService
	workflowService *services.WorkflowService
	costService     *services.CostService
	connManager     *events.ConnectionManager
	planRegistry    *executor.Registry

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg *config.Config, agentService *services.AgentService, workflowService *services.WorkflowService, costService *services.CostService, connManager *events.ConnectionManager, planRegistry *executor.Registry) *Server {
	s := &Server{
		cfg:             cfg,
		agentService:    agentService,
		workflowService: workflowService,
		costService:     costService,
		connManager:     connManager,
		planRegistry:    planRegistry,
		echo:            echo.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())
	e.Use(requestLogger())

	v1 := e.Group("/api/v1")
	v1.GET("/health", s.healthHandler)

	v1.GET("/agents", s.listAgentsHandler)
	v1.POST("/execute", s.executeHandler)
	v1.GET("/agents/:id/history", s.agentHistoryHandler)
	v1.GET("/agents/:id/stats", s.agentStatsHandler)

	v1.POST("/workflows/compile", s.compileWorkflowHandler)
	v1.POST("/workflows/execute", s.executeWorkflowHandler)
	v1.GET("/plans", s.listPlansHandler)
	v1.GET("/plans/:id", s.getPlanHandler)
	v1.POST("/plans/:id/cancel", s.cancelPlanHandler)

	v1.GET("/costs/summary", s.costSummaryHandler)
	v1.GET("/costs/agents/:id", s.costByAgentHandler)
	v1.GET("/costs/guilds/:guild", s.costByGuildHandler)
	v1.GET("/costs/export", s.costExportHandler)

	v1.GET("/ws", s.wsHandler)
}

// Handler exposes the underlying http.Handler for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and serves until Shutdown. Blocks.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.StartWithListener(ln)
}

// StartWithListener serves on an existing listener. Used by tests to bind
// a random port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
