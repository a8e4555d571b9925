package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health: a database ping with a bounded
// timeout determines overall status.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.dbClient.HealthCheck(reqCtx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "ok",
	})
}
