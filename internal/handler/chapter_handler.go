package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/response"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// ChapterHandler exposes chapter access scheduling endpoints.
type ChapterHandler struct {
	chapters *service.ChapterService
	attempts *service.AttemptService
	scope    *service.ScopeService
}

// NewChapterHandler constructs handler.
func NewChapterHandler(chapters *service.ChapterService, attempts *service.AttemptService, scope *service.ScopeService) *ChapterHandler {
	return &ChapterHandler{chapters: chapters, attempts: attempts, scope: scope}
}

// List godoc
// @Summary List chapters in scope
// @Tags Chapters
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade query int false "Filter by grade"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /chapters [get]
func (h *ChapterHandler) List(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ChapterFilter{
		Subject: c.Query("subject"),
		Grade:   queryInt(c, "grade", 0),
		Status:  models.ChapterStatus(c.Query("status")),
	}
	chapters, err := h.chapters.List(c.Request.Context(), claims, school, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapters, nil)
}

// Get godoc
// @Summary Fetch one chapter
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter id"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id} [get]
func (h *ChapterHandler) Get(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	chapter, err := h.chapters.Get(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// Lock godoc
// @Summary Close a chapter to attempts
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter id"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id}/lock [post]
func (h *ChapterHandler) Lock(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	chapter, err := h.chapters.Lock(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// Unlock godoc
// @Summary Open a chapter for attempts
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter id"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id}/unlock [post]
func (h *ChapterHandler) Unlock(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	chapter, err := h.chapters.Unlock(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// SetDeadline godoc
// @Summary Set or move a chapter deadline
// @Tags Chapters
// @Accept json
// @Produce json
// @Param id path string true "Chapter id"
// @Param payload body service.SetDeadlineRequest true "Deadline payload"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id}/deadline [put]
func (h *ChapterHandler) SetDeadline(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SetDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	chapter, err := h.chapters.SetDeadline(c.Request.Context(), claims, school, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// RevealScores godoc
// @Summary Toggle score visibility for a chapter
// @Tags Chapters
// @Accept json
// @Produce json
// @Param id path string true "Chapter id"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id}/reveal-scores [post]
func (h *ChapterHandler) RevealScores(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req struct {
		Revealed bool `json:"revealed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	chapter, err := h.chapters.RevealScores(c.Request.Context(), claims, school, c.Param("id"), req.Revealed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// CanAttempt godoc
// @Summary Check whether the calling student may start an attempt
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter id"
// @Success 200 {object} response.Envelope
// @Router /chapters/{id}/can-attempt [get]
func (h *ChapterHandler) CanAttempt(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	open, chapter, err := h.chapters.CanAttempt(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"can_attempt": open,
		"status":      chapter.Status,
		"deadline":    chapter.Deadline,
	}, nil)
}

// SubmitAttempt godoc
// @Summary Record a student attempt for a chapter
// @Tags Attempts
// @Accept json
// @Produce json
// @Param payload body service.SubmitAttemptRequest true "Attempt payload"
// @Success 201 {object} response.Envelope
// @Router /attempts [post]
func (h *ChapterHandler) SubmitAttempt(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attempt, err := h.attempts.Submit(c.Request.Context(), claims, school, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// AttemptHistory godoc
// @Summary List the calling student's attempts
// @Tags Attempts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attempts [get]
func (h *ChapterHandler) AttemptHistory(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	attempts, err := h.attempts.History(c.Request.Context(), claims, school)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}
