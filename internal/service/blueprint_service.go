package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// BlueprintRepository describes the persistence the blueprint workflow needs.
type BlueprintRepository interface {
	Create(ctx context.Context, b *models.Blueprint) error
	FindByID(ctx context.Context, id string) (*models.Blueprint, error)
	List(ctx context.Context, filter models.BlueprintFilter) ([]models.Blueprint, int, error)
	Approve(ctx context.Context, id, approverID string, audit *models.AuditLog) error
}

// CreateBlueprintRequest is the HOD template payload.
type CreateBlueprintRequest struct {
	Name       string                    `json:"name" validate:"required"`
	Subject    string                    `json:"subject" validate:"required"`
	Grade      int                       `json:"grade" validate:"required,min=1,max=12"`
	TotalMarks int                       `json:"total_marks" validate:"required,min=1"`
	Sections   []BlueprintSectionRequest `json:"sections" validate:"required,min=1,dive"`
}

// BlueprintSectionRequest is one section of a template payload.
type BlueprintSectionRequest struct {
	Name          string              `json:"name" validate:"required"`
	MarksEach     int                 `json:"marks_each" validate:"required,min=1"`
	QuestionCount int                 `json:"question_count" validate:"required,min=1"`
	QuestionType  models.QuestionType `json:"question_type" validate:"required,oneof=mcq short long numeric"`
	ChapterID     *string             `json:"chapter_id,omitempty"`
	Difficulty    *models.Difficulty  `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// BlueprintService manages exam templates. A blueprint is created pending and
// approved exactly once; approval verifies that the section marks sum to the
// declared total so no paper can ever be generated off-balance.
type BlueprintService struct {
	repo      BlueprintRepository
	scope     *ScopeService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBlueprintService constructs a blueprint service.
func NewBlueprintService(repo BlueprintRepository, scope *ScopeService, validate *validator.Validate, logger *zap.Logger) *BlueprintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlueprintService{repo: repo, scope: scope, validator: validate, logger: logger}
}

// Create stores a pending blueprint owned by the calling HOD. The mark-sum
// check runs here too so an unbalanced template is rejected at the door, not
// just at approval.
func (s *BlueprintService) Create(ctx context.Context, claims *models.JWTClaims, school string, req CreateBlueprintRequest) (*models.Blueprint, error) {
	if !s.scope.Can(claims.Role, CapManageBlueprint) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blueprint payload")
	}
	target := ScopeTarget{SchoolID: school, Grade: req.Grade, Subject: req.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}

	sections := make(models.BlueprintSections, 0, len(req.Sections))
	for _, sec := range req.Sections {
		sections = append(sections, models.BlueprintSection{
			Name:          sec.Name,
			MarksEach:     sec.MarksEach,
			QuestionCount: sec.QuestionCount,
			QuestionType:  sec.QuestionType,
			ChapterID:     sec.ChapterID,
			Difficulty:    sec.Difficulty,
		})
	}
	if err := checkMarkSum(sections, req.TotalMarks); err != nil {
		return nil, err
	}

	blueprint := &models.Blueprint{
		SchoolID:   school,
		Name:       req.Name,
		Subject:    req.Subject,
		Grade:      req.Grade,
		TotalMarks: req.TotalMarks,
		Sections:   sections,
		Status:     models.BlueprintPending,
		CreatorID:  claims.UserID,
	}
	if err := s.repo.Create(ctx, blueprint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create blueprint")
	}
	return blueprint, nil
}

// Approve flips a pending blueprint to approved after re-verifying the
// mark-sum invariant against the stored sections.
func (s *BlueprintService) Approve(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Blueprint, error) {
	if !s.scope.Can(claims.Role, CapManageBlueprint) {
		return nil, appErrors.ErrScopeDenied
	}

	blueprint, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}
	if blueprint.Status != models.BlueprintPending {
		return nil, appErrors.ErrInvalidTransition
	}
	if err := checkMarkSum(blueprint.Sections, blueprint.TotalMarks); err != nil {
		return nil, err
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     models.AuditBlueprintApprove,
		Resource:   "blueprint",
		ResourceID: blueprint.ID,
		Detail:     "blueprint approved",
	}
	if err := s.repo.Approve(ctx, blueprint.ID, claims.UserID, audit); err != nil {
		return nil, err
	}

	blueprint.Status = models.BlueprintApproved
	blueprint.ApproverID = &claims.UserID
	return blueprint, nil
}

// Get returns one blueprint within the caller's scope.
func (s *BlueprintService) Get(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Blueprint, error) {
	return s.fetchScoped(ctx, claims, school, id)
}

// List returns blueprints visible to the caller.
func (s *BlueprintService) List(ctx context.Context, claims *models.JWTClaims, school string, filter models.BlueprintFilter) ([]models.Blueprint, *models.Pagination, error) {
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

	blueprints, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list blueprints")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return blueprints, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *BlueprintService) fetchScoped(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Blueprint, error) {
	blueprint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScopeDenied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fetch blueprint")
	}
	target := ScopeTarget{SchoolID: blueprint.SchoolID, Grade: blueprint.Grade, Subject: blueprint.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}
	return blueprint, nil
}

func checkMarkSum(sections models.BlueprintSections, totalMarks int) error {
	if len(sections) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "blueprint needs at least one section")
	}
	if got := sections.TotalSectionMarks(); got != totalMarks {
		return appErrors.Clone(appErrors.ErrValidation,
			"section marks do not sum to the declared total")
	}
	return nil
}
