// Package http provides the HTTP server implementation for hookwatch.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/hookwatch/internal/hub"
	"github.com/xiaot623/hookwatch/internal/service"
	v1 "github.com/xiaot623/hookwatch/internal/transport/http/v1"
	"github.com/xiaot623/hookwatch/internal/ws"
)

// NewServer creates and configures the HTTP server: hook ingestion, the read
// API and the viewer WebSocket endpoint.
func NewServer(svc *service.Service, h *hub.Hub, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, h)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	return e
}
