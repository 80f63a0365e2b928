package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/response"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// BlueprintHandler exposes exam template endpoints.
type BlueprintHandler struct {
	blueprints *service.BlueprintService
	scope      *service.ScopeService
}

// NewBlueprintHandler constructs handler.
func NewBlueprintHandler(blueprints *service.BlueprintService, scope *service.ScopeService) *BlueprintHandler {
	return &BlueprintHandler{blueprints: blueprints, scope: scope}
}

// Create godoc
// @Summary Create a pending blueprint
// @Tags Blueprints
// @Accept json
// @Produce json
// @Param payload body service.CreateBlueprintRequest true "Blueprint payload"
// @Success 201 {object} response.Envelope
// @Router /blueprints [post]
func (h *BlueprintHandler) Create(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateBlueprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	blueprint, err := h.blueprints.Create(c.Request.Context(), claims, school, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blueprint)
}

// List godoc
// @Summary List blueprints in scope
// @Tags Blueprints
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade query int false "Filter by grade"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /blueprints [get]
func (h *BlueprintHandler) List(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.BlueprintFilter{
		Subject:  c.Query("subject"),
		Grade:    queryInt(c, "grade", 0),
		Status:   models.BlueprintStatus(c.Query("status")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	blueprints, pagination, err := h.blueprints.List(c.Request.Context(), claims, school, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blueprints, pagination)
}

// Get godoc
// @Summary Fetch one blueprint
// @Tags Blueprints
// @Produce json
// @Param id path string true "Blueprint id"
// @Success 200 {object} response.Envelope
// @Router /blueprints/{id} [get]
func (h *BlueprintHandler) Get(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	blueprint, err := h.blueprints.Get(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blueprint, nil)
}

// Approve godoc
// @Summary Approve a pending blueprint
// @Tags Blueprints
// @Produce json
// @Param id path string true "Blueprint id"
// @Success 200 {object} response.Envelope
// @Router /blueprints/{id}/approve [post]
func (h *BlueprintHandler) Approve(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	blueprint, err := h.blueprints.Approve(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blueprint, nil)
}
