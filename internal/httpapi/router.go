// Package httpapi serves the lcamatch operations over HTTP with gin.
//
// Every failure is answered with {"error": {"message", "code"}} and the
// status of its error kind.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rshade/lcamatch/internal/service"
)

var errInvalidThreshold = errors.New("threshold must be a number between 0 and 1")

func errInvalidInt(name string) error {
	return fmt.Errorf("%s must be a non-negative integer", name)
}

// NewRouter returns the gin engine serving svc. Path parameters are
// matched on the raw path so material names may contain an escaped "/".
func NewRouter(svc *service.Service, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), requestLogger(log))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorEnvelope{Error: APIError{Message: "route not found", Code: "not_found"}})
	})

	h := NewHandler(svc)
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.GET("/sources", h.ListSources)
		api.POST("/sources/sync", h.SyncAll)
		api.POST("/sources/:source/sync", h.TriggerSync)

		api.GET("/materials/search", h.SearchMaterials)
		api.GET("/materials/:id", h.GetMaterial)

		api.POST("/projects", h.CreateProject)
		api.GET("/projects", h.ListProjects)
		api.GET("/projects/:id", h.GetProject)
		api.PUT("/projects/:id/source", h.SetPreferredSource)
		api.POST("/projects/:id/elements", h.ImportElements)
		api.GET("/projects/:id/materials", h.ProjectMaterials)
		api.GET("/projects/:id/materials/:name/candidates", h.FindCandidates)
		api.PUT("/projects/:id/materials/:name/match", h.ApplyMatch)
		api.DELETE("/projects/:id/materials/:name/match", h.ClearMatch)
		api.PUT("/projects/:id/materials/:name/density", h.SetDensity)
		api.DELETE("/projects/:id/matches", h.ClearAllMatches)
		api.POST("/projects/:id/auto-match", h.AutoMatch)
		api.POST("/projects/:id/recalculate", h.Recalculate)
		api.GET("/projects/:id/emissions", h.Emissions)
		api.GET("/projects/:id/export", h.Export)
	}
	return r
}
