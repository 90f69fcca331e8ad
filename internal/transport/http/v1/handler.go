// Package v1 provides the HTTP handlers for ingestion and the read API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// ConnectionCounter reports the number of live viewers.
type ConnectionCounter interface {
	GetConnectionCount() int
}

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	viewers ConnectionCounter
}

// NewHandler creates a new handler. viewers may be nil.
func NewHandler(service *service.Service, viewers ConnectionCounter) *Handler {
	return &Handler{
		service: service,
		viewers: viewers,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/ingest/hooks", h.IngestHook)

	e.GET("/api/agents", h.ListAgents)
	e.GET("/api/agents/:agentId", h.GetAgent)
	// composite ids contain a slash and may arrive unescaped
	e.GET("/api/agents/:workspace/:name", h.GetAgent)
	e.GET("/api/snapshot", h.GetSnapshot)
	e.GET("/api/events", h.ListEvents)
	e.GET("/api/events/:eventId/context", h.GetEventContext)
	e.GET("/api/sessions", h.ListSessions)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	connections := 0
	if h.viewers != nil {
		connections = h.viewers.GetConnectionCount()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"version":     Version,
		"connections": connections,
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{"ok": false, "error": msg})
}
