package server

import (
	"net/http"

	"github.com/OFFIS-RIT/kgbuilder/internal/server/middleware"
	"github.com/OFFIS-RIT/kgbuilder/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	kg := e.Group("/api/kg", middleware.AuthMiddleware)

	// Extraction and build
	kg.POST("/upload-and-extract", routes.UploadAndExtractHandler)
	kg.GET("/extract-result/:taskId", routes.GetExtractResultHandler)
	kg.POST("/confirm-and-build/:taskId", routes.ConfirmAndBuildHandler)

	// Tasks
	kg.GET("/tasks", routes.GetTasksHandler)
	kg.DELETE("/tasks/:taskId", routes.DeleteTaskHandler)

	// Ontology libraries
	kg.GET("/ontology", routes.GetOntologiesHandler)
	kg.GET("/ontology/:id", routes.GetOntologyHandler)
	kg.POST("/ontology", routes.CreateOntologyHandler)
	kg.PUT("/ontology/:id", routes.UpdateOntologyHandler)
	kg.DELETE("/ontology/:id", routes.DeleteOntologyHandler)

	// Graph reads
	kg.GET("/graph", routes.QueryGraphHandler)
	kg.GET("/search", routes.SearchEntitiesHandler)
	kg.GET("/network/:entityId", routes.EntityNetworkHandler)
	kg.GET("/stats", routes.GraphStatsHandler)
}
