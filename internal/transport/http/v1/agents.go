package v1

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/internal/service"
)

// ListAgents lists agents in the requested scope.
// GET /api/agents
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.service.ListAgents(ctx, scopesFromQuery(c))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": agents,
	})
}

// GetAgent gets a specific agent by its composite ID.
// GET /api/agents/:agentId
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()

	agentID := c.Param("agentId")
	if agentID == "" {
		agentID = c.Param("workspace") + "/" + c.Param("name")
	}
	if unescaped, err := url.PathUnescape(agentID); err == nil {
		agentID = unescaped
	}

	agent, err := h.service.GetAgent(ctx, agentID)
	if errors.Is(err, service.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "agent not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, agent)
}
