package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/response"
)

// AnalyticsHandler exposes risk analytics endpoints.
type AnalyticsHandler struct {
	risk    *service.RiskService
	metrics *service.MetricsService
	scope   *service.ScopeService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(risk *service.RiskService, metrics *service.MetricsService, scope *service.ScopeService) *AnalyticsHandler {
	return &AnalyticsHandler{risk: risk, metrics: metrics, scope: scope}
}

// AtRisk godoc
// @Summary List students classified at risk in the window
// @Tags Analytics
// @Produce json
// @Param window_days query int false "Attempt window in days"
// @Success 200 {object} response.Envelope
// @Router /analytics/at-risk [get]
func (h *AnalyticsHandler) AtRisk(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.risk.AtRiskStudents(c.Request.Context(), claims, school, queryInt(c, "window_days", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Alerts godoc
// @Summary List behavioural alerts derived from the window
// @Tags Analytics
// @Produce json
// @Param window_days query int false "Attempt window in days"
// @Success 200 {object} response.Envelope
// @Router /analytics/alerts [get]
func (h *AnalyticsHandler) Alerts(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	alerts, err := h.risk.Alerts(c.Request.Context(), claims, school, queryInt(c, "window_days", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// GradePerformance godoc
// @Summary Aggregate window performance by grade
// @Tags Analytics
// @Produce json
// @Param window_days query int false "Attempt window in days"
// @Success 200 {object} response.Envelope
// @Router /analytics/grade-performance [get]
func (h *AnalyticsHandler) GradePerformance(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	performance, err := h.risk.GradePerformance(c.Request.Context(), claims, school, queryInt(c, "window_days", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, performance, nil)
}

// SubjectHealth godoc
// @Summary Aggregate window performance by subject and grade
// @Tags Analytics
// @Produce json
// @Param window_days query int false "Attempt window in days"
// @Success 200 {object} response.Envelope
// @Router /analytics/subject-health [get]
func (h *AnalyticsHandler) SubjectHealth(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	health, err := h.risk.SubjectHealth(c.Request.Context(), claims, school, queryInt(c, "window_days", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, health, nil)
}

// Snapshot godoc
// @Summary Principal dashboard headline numbers
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/snapshot [get]
func (h *AnalyticsHandler) Snapshot(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	snapshot, err := h.risk.Snapshot(c.Request.Context(), claims, school)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// System godoc
// @Summary Instrumentation snapshot for the analytics surface
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
