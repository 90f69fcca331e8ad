package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/service"
)

// ListEvents queries the event log.
// GET /api/events?agent_id=&since=&until=&type=&limit=
func (h *Handler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	query := domain.EventQuery{
		Scopes:  scopesFromQuery(c),
		AgentID: c.QueryParam("agent_id"),
		SinceTs: int64Param(c, "since"),
		UntilTs: int64Param(c, "until"),
		Types:   listParam(c, "type"),
		Limit:   intParam(c, "limit", 0),
		Latest:  c.QueryParam("order") == "latest",
	}

	events, err := h.service.ListEvents(ctx, query)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// GetEventContext returns the events around one event and the replayed
// status of its agent.
// GET /api/events/:eventId/context?before=N&after=N
func (h *Handler) GetEventContext(c echo.Context) error {
	ctx := c.Request().Context()

	ec, err := h.service.EventContext(ctx, c.Param("eventId"), intParam(c, "before", 10), intParam(c, "after", 10))
	if errors.Is(err, service.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "event not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ec)
}
