// Package api exposes the Run Execution Engine over HTTP: starting runs,
// streaming their events live over SSE, replaying the durable log, and
// inspecting/cancelling runs. Grounded on pkg/api/server.go's Echo v5
// wiring and route-registration style.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/hive"
)

// Server is the HTTP API server fronting a RunManager.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	runs        *hive.RunManager
	hierarchies *hierarchy.Registry
	bus         *eventbus.Bus
	store       eventbus.EventStore
}

// NewServer creates a Server with every route registered.
func NewServer(runs *hive.RunManager, hierarchies *hierarchy.Registry, bus *eventbus.Bus, store eventbus.EventStore) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s := &Server{
		echo:        e,
		runs:        runs,
		hierarchies: hierarchies,
		bus:         bus,
		store:       store,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers every endpoint named in the executor's HTTP surface.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/executor/v1")
	v1.POST("/runs/start", s.startHandler)
	v1.POST("/runs/stream", s.streamHandler)
	v1.POST("/runs/events", s.eventsHandler)
	v1.POST("/runs/get", s.getHandler)
	v1.POST("/runs/cancel", s.cancelHandler)
	v1.POST("/runs/list", s.listHandler)
}

// Start serves on addr, blocking until the server stops or errors.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener, for callers that
// bind an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"run_stats":   s.runs.Stats(),
		"hierarchies": s.hierarchies.Len(),
	})
}
