package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openrepurpose/netprox/internal/server/middleware"
)

// GetTopPairsHandler returns the best-scoring pairs of a run from the
// result store.
func GetTopPairsHandler(c echo.Context) error {
	type topQuery struct {
		K int `query:"k" validate:"min=0"`
	}

	query := &topQuery{K: 20}
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if query.K == 0 {
		query.K = 20
	}

	app := c.(*middleware.AppContext).App
	if app.Store == nil {
		return c.JSON(http.StatusServiceUnavailable,
			map[string]string{"error": "result store not configured"})
	}

	runID := c.Param("run_id")
	pairs, err := app.Store.TopPairs(c.Request().Context(), runID, query.K)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"run_id": runID,
		"pairs":  pairs,
	})
}
