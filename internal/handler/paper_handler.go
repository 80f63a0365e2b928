package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/response"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// PaperHandler exposes exam paper workflow endpoints.
type PaperHandler struct {
	papers *service.PaperService
	scope  *service.ScopeService
}

// NewPaperHandler constructs handler.
func NewPaperHandler(papers *service.PaperService, scope *service.ScopeService) *PaperHandler {
	return &PaperHandler{papers: papers, scope: scope}
}

// Generate godoc
// @Summary Generate a draft paper from an approved blueprint
// @Tags Papers
// @Accept json
// @Produce json
// @Param payload body service.GeneratePaperRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Router /papers/generate [post]
func (h *PaperHandler) Generate(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.GeneratePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	paper, err := h.papers.Generate(c.Request.Context(), claims, school, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, paper)
}

// List godoc
// @Summary List papers in scope
// @Tags Papers
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade query int false "Filter by grade"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.PaperFilter{
		Subject:  c.Query("subject"),
		Grade:    queryInt(c, "grade", 0),
		Status:   models.PaperStatus(c.Query("status")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	papers, pagination, err := h.papers.List(c.Request.Context(), claims, school, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, papers, pagination)
}

// Get godoc
// @Summary Fetch one paper
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Success 200 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	paper, err := h.papers.Get(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Advance godoc
// @Summary Move a paper one workflow step
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper id"
// @Param payload body service.AdvancePaperRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/advance [post]
func (h *PaperHandler) Advance(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.AdvancePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	paper, err := h.papers.Advance(c.Request.Context(), claims, school, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Lock godoc
// @Summary Lock a paper approved for print
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/lock [post]
func (h *PaperHandler) Lock(c *gin.Context) {
	h.advanceTo(c, models.PaperLocked)
}

// Unlock godoc
// @Summary Unlock a locked paper back to approved-for-print
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/unlock [post]
func (h *PaperHandler) Unlock(c *gin.Context) {
	h.advanceTo(c, models.PaperApprovedForPrint)
}

func (h *PaperHandler) advanceTo(c *gin.Context, target models.PaperStatus) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	paper, err := h.papers.Advance(c.Request.Context(), claims, school, c.Param("id"),
		service.AdvancePaperRequest{Target: target})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// PrintMeta godoc
// @Summary Update print metadata on a locked paper
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper id"
// @Param payload body service.PrintMetaRequest true "Print metadata"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/print-meta [put]
func (h *PaperHandler) PrintMeta(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.PrintMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	paper, err := h.papers.UpdatePrintMeta(c.Request.Context(), claims, school, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Audit godoc
// @Summary List the workflow audit trail of a paper
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/audit [get]
func (h *PaperHandler) Audit(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.papers.AuditTrail(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
