package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/normalizer"
)

// IngestHook accepts one raw hook payload.
// POST /ingest/hooks
func (h *Handler) IngestHook(c echo.Context) error {
	ctx := c.Request().Context()

	var raw map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, domain.ErrorResponse{OK: false, Error: "body must be a JSON object"})
	}

	resp, err := h.service.Ingest(ctx, raw)
	if err != nil {
		var verr *normalizer.ValidationError
		if !errors.As(err, &verr) {
			slog.Error("Ingestion failed", "error", err)
		}
		return c.JSON(http.StatusUnprocessableEntity, domain.ErrorResponse{OK: false, Error: err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}
