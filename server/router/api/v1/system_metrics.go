package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetMetricsOverview returns generation and cache counters since start.
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	overview, err := s.MapService.Metrics().Overview()
	if err != nil {
		slog.Warn("failed to gather metrics", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
	}
	return c.JSON(http.StatusOK, overview)
}
