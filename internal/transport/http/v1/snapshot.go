package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetSnapshot returns agents, tasks, sessions, recent events and settings.
// GET /api/snapshot
func (h *Handler) GetSnapshot(c echo.Context) error {
	snap, err := h.service.Snapshot(c.Request().Context(), scopesFromQuery(c))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, snap)
}

// ListSessions lists tracked scopes.
// GET /api/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context(), scopesFromQuery(c))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}
