package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/middleware"
	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

type paperRepoStub struct {
	paper *models.Paper
}

func (s *paperRepoStub) Create(ctx context.Context, p *models.Paper, audit *models.AuditLog) error {
	s.paper = p
	return nil
}

func (s *paperRepoStub) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	if s.paper == nil || s.paper.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.paper
	return &copied, nil
}

func (s *paperRepoStub) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
	if s.paper == nil {
		return nil, 0, nil
	}
	return []models.Paper{*s.paper}, 1, nil
}

func (s *paperRepoStub) Transition(ctx context.Context, id string, from, to models.PaperStatus, locked bool, returnReason *string, audit *models.AuditLog) error {
	if s.paper == nil || s.paper.Status != from {
		return appErrors.ErrInvalidTransition
	}
	s.paper.Status = to
	s.paper.Locked = locked
	return nil
}

func (s *paperRepoStub) UpdatePrintMeta(ctx context.Context, id string, copies int, printed, delivered bool, audit *models.AuditLog) error {
	return nil
}

type wingReaderStub struct{}

func (wingReaderStub) FindByID(ctx context.Context, id string) (*models.Wing, error) {
	return &models.Wing{ID: id, SchoolID: "school-1", MinGrade: 6, MaxGrade: 8}, nil
}

type blueprintReaderStub struct{}

func (blueprintReaderStub) FindByID(ctx context.Context, id string) (*models.Blueprint, error) {
	return nil, sql.ErrNoRows
}

type pickerStub struct{}

func (pickerStub) PickApproved(ctx context.Context, schoolID, subject string, grade int, qtype models.QuestionType, marks int, chapterID *string, difficulty *models.Difficulty, limit int) ([]string, error) {
	return nil, nil
}

func (pickerStub) StatusesByIDs(ctx context.Context, ids []string) (map[string]models.QuestionStatus, error) {
	statuses := make(map[string]models.QuestionStatus, len(ids))
	for _, id := range ids {
		statuses[id] = models.QuestionApproved
	}
	return statuses, nil
}

type auditReaderStub struct{}

func (auditReaderStub) ListByResource(ctx context.Context, schoolID, resource, resourceID string) ([]models.AuditLog, error) {
	return nil, nil
}

func newPaperHandlerFixture(paper *models.Paper) (*PaperHandler, *paperRepoStub) {
	repo := &paperRepoStub{paper: paper}
	scope := service.NewScopeService(wingReaderStub{}, nil)
	papers := service.NewPaperService(repo, blueprintReaderStub{}, pickerStub{}, auditReaderStub{}, scope, nil, nil)
	return NewPaperHandler(papers, scope), repo
}

func committeeContext(t *testing.T, w *httptest.ResponseRecorder, method, target, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:   "ec-1",
		SchoolID: "school-1",
		Role:     models.RoleExamCommittee,
	})
	return c
}

func TestPaperHandlerAdvanceConflict(t *testing.T) {
	handler, _ := newPaperHandlerFixture(&models.Paper{
		ID: "p-1", SchoolID: "school-1", Subject: "Mathematics", Grade: 7,
		Status: models.PaperDraft,
	})

	w := httptest.NewRecorder()
	c := committeeContext(t, w, http.MethodPost, "/papers/p-1/advance", `{"target":"locked"}`)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.Advance(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPaperHandlerAdvanceLocked(t *testing.T) {
	handler, _ := newPaperHandlerFixture(&models.Paper{
		ID: "p-1", SchoolID: "school-1", Subject: "Mathematics", Grade: 7,
		Status: models.PaperLocked, Locked: true,
	})

	w := httptest.NewRecorder()
	c := committeeContext(t, w, http.MethodPost, "/papers/p-1/advance", `{"target":"sent_for_review"}`)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.Advance(c)
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestPaperHandlerGetOutOfScopeIsNotFound(t *testing.T) {
	handler, _ := newPaperHandlerFixture(&models.Paper{
		ID: "p-1", SchoolID: "school-2", Subject: "Mathematics", Grade: 7,
		Status: models.PaperDraft,
	})

	w := httptest.NewRecorder()
	c := committeeContext(t, w, http.MethodGet, "/papers/p-1", "")
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaperHandlerNoClaimsIsUnauthorized(t *testing.T) {
	handler, _ := newPaperHandlerFixture(&models.Paper{
		ID: "p-1", SchoolID: "school-1", Subject: "Mathematics", Grade: 7,
		Status: models.PaperDraft,
	})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/papers/p-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	// A route wired without the JWT middleware degrades to 401, not a panic.
	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaperHandlerAdvanceMalformedBody(t *testing.T) {
	handler, repo := newPaperHandlerFixture(&models.Paper{
		ID: "p-1", SchoolID: "school-1", Subject: "Mathematics", Grade: 7,
		Status: models.PaperDraft,
	})

	w := httptest.NewRecorder()
	c := committeeContext(t, w, http.MethodPost, "/papers/p-1/advance", `{"target":`)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.Advance(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.PaperDraft, repo.paper.Status)
}
