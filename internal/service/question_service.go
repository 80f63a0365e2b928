package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// QuestionRepository describes the persistence the question workflow needs.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question) error
	FindByID(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error)
	UpdateDraft(ctx context.Context, q *models.Question) error
	Transition(ctx context.Context, id string, from, to models.QuestionStatus, reviewerID, comment *string, audit *models.AuditLog) error
}

// CreateQuestionRequest is the teacher's draft payload.
type CreateQuestionRequest struct {
	Subject    string              `json:"subject" validate:"required"`
	ChapterID  *string             `json:"chapter_id,omitempty"`
	Grade      int                 `json:"grade" validate:"required,min=1,max=12"`
	Content    string              `json:"content" validate:"required"`
	Type       models.QuestionType `json:"type" validate:"required,oneof=mcq short long numeric"`
	Marks      int                 `json:"marks" validate:"required,min=1"`
	Difficulty models.Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
}

// ReviewQuestionRequest is the HOD verdict payload.
type ReviewQuestionRequest struct {
	Decision models.ReviewDecision `json:"decision" validate:"required,oneof=approve reject"`
	Comment  string                `json:"comment"`
}

// QuestionService drives the question lifecycle:
// draft -> pending_review -> approved | rejected, with rejected -> draft on
// teacher resubmission. Approved is terminal.
type QuestionService struct {
	repo      QuestionRepository
	scope     *ScopeService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuestionService constructs a question service.
func NewQuestionService(repo QuestionRepository, scope *ScopeService, validate *validator.Validate, logger *zap.Logger) *QuestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{repo: repo, scope: scope, validator: validate, logger: logger}
}

// Create stores a question draft owned by the calling teacher.
func (s *QuestionService) Create(ctx context.Context, claims *models.JWTClaims, school string, req CreateQuestionRequest) (*models.Question, error) {
	if !s.scope.Can(claims.Role, CapSubmitQuestion) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	target := ScopeTarget{SchoolID: school, Grade: req.Grade, Subject: req.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}

	question := &models.Question{
		SchoolID:   school,
		Subject:    req.Subject,
		ChapterID:  req.ChapterID,
		Grade:      req.Grade,
		Content:    req.Content,
		Type:       req.Type,
		Marks:      req.Marks,
		Difficulty: req.Difficulty,
		Status:     models.QuestionDraft,
		CreatorID:  claims.UserID,
	}
	if err := s.repo.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create question")
	}
	return question, nil
}

// Submit moves a draft (or rejected) question into review. Only the creating
// teacher may submit, and content must be non-empty.
func (s *QuestionService) Submit(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Question, error) {
	question, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}
	if question.CreatorID != claims.UserID {
		return nil, appErrors.ErrScopeDenied
	}
	if strings.TrimSpace(question.Content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question content is empty")
	}

	from := question.Status
	var action string
	switch from {
	case models.QuestionDraft:
		action = models.AuditQuestionSubmit
	case models.QuestionRejected:
		action = models.AuditQuestionResubmit
	default:
		return nil, appErrors.ErrInvalidTransition
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     action,
		Resource:   "question",
		ResourceID: question.ID,
		Detail:     "submitted for review",
	}
	if err := s.repo.Transition(ctx, question.ID, from, models.QuestionPendingReview, nil, nil, audit); err != nil {
		return nil, err
	}
	question.Status = models.QuestionPendingReview
	return question, nil
}

// Review records the HOD decision. Rejection requires a comment; the comment
// is preserved on the question as the audit trail for the teacher.
func (s *QuestionService) Review(ctx context.Context, claims *models.JWTClaims, school, id string, req ReviewQuestionRequest) (*models.Question, error) {
	if !s.scope.Can(claims.Role, CapReviewQuestion) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	question, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}
	if question.Status != models.QuestionPendingReview {
		return nil, appErrors.ErrInvalidTransition
	}

	comment := strings.TrimSpace(req.Comment)
	var (
		to     models.QuestionStatus
		action string
	)
	switch req.Decision {
	case models.DecisionApprove:
		to = models.QuestionApproved
		action = models.AuditQuestionApprove
	case models.DecisionReject:
		if comment == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection comment is required")
		}
		to = models.QuestionRejected
		action = models.AuditQuestionReject
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown review decision")
	}

	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     action,
		Resource:   "question",
		ResourceID: question.ID,
		Detail:     comment,
	}
	if err := s.repo.Transition(ctx, question.ID, models.QuestionPendingReview, to, &claims.UserID, commentPtr, audit); err != nil {
		return nil, err
	}

	question.Status = to
	question.ReviewerID = &claims.UserID
	if commentPtr != nil {
		question.ReviewComment = commentPtr
	}
	return question, nil
}

// UpdateDraft lets the creating teacher edit a draft or rejected question
// before (re)submission.
func (s *QuestionService) UpdateDraft(ctx context.Context, claims *models.JWTClaims, school, id string, req CreateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	question, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}
	if question.CreatorID != claims.UserID {
		return nil, appErrors.ErrScopeDenied
	}
	target := ScopeTarget{SchoolID: school, Grade: req.Grade, Subject: req.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}

	question.Subject = req.Subject
	question.ChapterID = req.ChapterID
	question.Grade = req.Grade
	question.Content = req.Content
	question.Type = req.Type
	question.Marks = req.Marks
	question.Difficulty = req.Difficulty
	if err := s.repo.UpdateDraft(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

// Get returns one question within the caller's scope.
func (s *QuestionService) Get(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Question, error) {
	return s.fetchScoped(ctx, claims, school, id)
}

// List returns questions visible to the caller. Wing-scoped callers are
// narrowed to their own subjects and grade range by scope checks on each row.
func (s *QuestionService) List(ctx context.Context, claims *models.JWTClaims, school string, filter models.QuestionFilter) ([]models.Question, *models.Pagination, error) {
	if !s.scope.Can(claims.Role, CapViewWorkflowRead) {
		return nil, nil, appErrors.ErrScopeDenied
	}
	if filter.Subject != "" || filter.Grade > 0 {
		target := ScopeTarget{SchoolID: school, Grade: filter.Grade, Subject: filter.Subject}
		if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
			return nil, nil, err
		}
	}
	filter.SchoolID = school
	if claims.Role == models.RoleTeacher {
		// Teachers see their own bank entries only.
		filter.CreatorID = claims.UserID
	}

	questions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list questions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return questions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *QuestionService) fetchScoped(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Question, error) {
	question, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScopeDenied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fetch question")
	}
	target := ScopeTarget{SchoolID: question.SchoolID, Grade: question.Grade, Subject: question.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}
	return question, nil
}
