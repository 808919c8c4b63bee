package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rshade/lcamatch/internal/matcher"
	"github.com/rshade/lcamatch/internal/service"
	"github.com/rshade/lcamatch/internal/store"
)

// Handler serves the operations of a service.Service.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}

// GET /api/sources
func (h *Handler) ListSources(c *gin.Context) {
	respondOK(c, gin.H{"sources": h.svc.GetSourceList()})
}

// POST /api/sources/:source/sync
func (h *Handler) TriggerSync(c *gin.Context) {
	rep, err := h.svc.TriggerSync(c.Request.Context(), c.Param("source"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rep)
}

// POST /api/sources/sync
func (h *Handler) SyncAll(c *gin.Context) {
	reps, err := h.svc.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"results": reps})
}

// GET /api/materials/search?q=&source=&limit=
func (h *Handler) SearchMaterials(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	res, err := h.svc.SearchMaterials(c.Request.Context(), c.Query("q"), c.Query("source"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// GET /api/materials/:id
func (h *Handler) GetMaterial(c *gin.Context) {
	m, err := h.svc.GetMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, m)
}

// POST /api/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GET /api/projects
func (h *Handler) ListProjects(c *gin.Context) {
	ps, err := h.svc.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"projects": ps})
}

// GET /api/projects/:id
func (h *Handler) GetProject(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, p)
}

type sourceBody struct {
	Source string `json:"source" binding:"required"`
}

// PUT /api/projects/:id/source
func (h *Handler) SetPreferredSource(c *gin.Context) {
	var body sourceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	res, err := h.svc.SetPreferredSource(c.Request.Context(), c.Param("id"), body.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

type elementsBody struct {
	Elements []store.ElementInput `json:"elements" binding:"required"`
}

// POST /api/projects/:id/elements
func (h *Handler) ImportElements(c *gin.Context) {
	var body elementsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	res, err := h.svc.ImportElements(c.Request.Context(), c.Param("id"), body.Elements)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// GET /api/projects/:id/materials
func (h *Handler) ProjectMaterials(c *gin.Context) {
	mats, err := h.svc.ProjectMaterials(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]materialView, 0, len(mats))
	for i := range mats {
		out = append(out, newMaterialView(&mats[i]))
	}
	respondOK(c, gin.H{"materials": out})
}

// materialView is the wire form of a project material.
type materialView struct {
	Name     string       `json:"name"`
	Density  *float64     `json:"density"`
	LCAMatch *store.Match `json:"lcaMatch"`
}

func newMaterialView(m *store.ProjectMaterial) materialView {
	return materialView{Name: m.Name, Density: m.Density, LCAMatch: m.Match()}
}

// GET /api/projects/:id/materials/:name/candidates?source=&threshold=&limit=
func (h *Handler) FindCandidates(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	opts := matcher.Options{Source: c.Query("source"), Limit: limit}
	if raw := c.Query("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 1 {
			badRequest(c, "invalid_threshold", errInvalidThreshold)
			return
		}
		opts.Threshold = t
	}
	res, err := h.svc.FindCandidates(c.Request.Context(), c.Param("id"), c.Param("name"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

type matchBody struct {
	MaterialID string `json:"normalizedMaterialId" binding:"required"`
	Source     string `json:"source"`
	SourceID   string `json:"sourceId"`
}

// PUT /api/projects/:id/materials/:name/match
func (h *Handler) ApplyMatch(c *gin.Context) {
	var body matchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	res, err := h.svc.ApplyManualMatch(c.Request.Context(), c.Param("id"), service.ManualMatchRequest{
		MaterialName: c.Param("name"),
		MaterialID:   body.MaterialID,
		Source:       body.Source,
		SourceID:     body.SourceID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// DELETE /api/projects/:id/materials/:name/match
func (h *Handler) ClearMatch(c *gin.Context) {
	res, err := h.svc.ClearMatch(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// DELETE /api/projects/:id/matches
func (h *Handler) ClearAllMatches(c *gin.Context) {
	res, err := h.svc.ClearAllMatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

type densityBody struct {
	Density *float64 `json:"density"`
}

// PUT /api/projects/:id/materials/:name/density
func (h *Handler) SetDensity(c *gin.Context) {
	var body densityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	res, err := h.svc.SetDensity(c.Request.Context(), c.Param("id"), c.Param("name"), body.Density)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

type autoMatchBody struct {
	Source string `json:"source"`
}

// POST /api/projects/:id/auto-match
func (h *Handler) AutoMatch(c *gin.Context) {
	var body autoMatchBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid_body", err)
			return
		}
	}
	res, err := h.svc.AutoMatch(c.Request.Context(), c.Param("id"), body.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// POST /api/projects/:id/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	res, err := h.svc.Recalculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// GET /api/projects/:id/emissions
func (h *Handler) Emissions(c *gin.Context) {
	res, err := h.svc.GetEmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// GET /api/projects/:id/export
func (h *Handler) Export(c *gin.Context) {
	res, err := h.svc.ExportIndicators(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// intQuery parses an optional non-negative integer query parameter. On
// failure the response is written and ok is false.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid_"+name, errInvalidInt(name))
		return 0, false
	}
	return n, true
}
