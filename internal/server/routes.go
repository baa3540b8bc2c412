package server

import (
	"github.com/labstack/echo/v4"

	"github.com/openrepurpose/netprox/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Network distance routes
	apiRoutes.GET("/distance", routes.GetDistanceHandler)
	apiRoutes.GET("/genes/:gene_id/neighbors", routes.GetNeighborhoodHandler)

	// Scored result routes
	apiRoutes.GET("/runs/:run_id/top", routes.GetTopPairsHandler)
}
