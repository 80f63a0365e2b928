package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	"github.com/VipuDevAI/prashnakosh-api/pkg/response"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// QuestionHandler exposes question bank endpoints.
type QuestionHandler struct {
	questions *service.QuestionService
	scope     *service.ScopeService
}

// NewQuestionHandler constructs handler.
func NewQuestionHandler(questions *service.QuestionService, scope *service.ScopeService) *QuestionHandler {
	return &QuestionHandler{questions: questions, scope: scope}
}

// Create godoc
// @Summary Create a question draft
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Router /questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.questions.Create(c.Request.Context(), claims, school, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// List godoc
// @Summary List questions in scope
// @Tags Questions
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade query int false "Filter by grade"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.QuestionFilter{
		Subject:   c.Query("subject"),
		ChapterID: c.Query("chapter_id"),
		Grade:     queryInt(c, "grade", 0),
		Status:    models.QuestionStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
	}
	questions, pagination, err := h.questions.List(c.Request.Context(), claims, school, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, pagination)
}

// Get godoc
// @Summary Fetch one question
// @Tags Questions
// @Produce json
// @Param id path string true "Question id"
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [get]
func (h *QuestionHandler) Get(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	question, err := h.questions.Get(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Update godoc
// @Summary Edit a draft or rejected question
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question id"
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [put]
func (h *QuestionHandler) Update(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.questions.UpdateDraft(c.Request.Context(), claims, school, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Submit godoc
// @Summary Submit a question for review
// @Tags Questions
// @Produce json
// @Param id path string true "Question id"
// @Success 200 {object} response.Envelope
// @Router /questions/{id}/submit [post]
func (h *QuestionHandler) Submit(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	question, err := h.questions.Submit(c.Request.Context(), claims, school, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Review godoc
// @Summary Approve or reject a pending question
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question id"
// @Param payload body service.ReviewQuestionRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /questions/{id}/review [post]
func (h *QuestionHandler) Review(c *gin.Context) {
	claims, school, err := effectiveSchool(c, h.scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ReviewQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.questions.Review(c.Request.Context(), claims, school, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}
