package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// AttemptRepository describes attempt persistence for submission and history.
type AttemptRepository interface {
	Create(ctx context.Context, a *models.Attempt) error
	ListWindow(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error)
}

// ChapterGate checks whether a chapter is open for new attempts.
type ChapterGate interface {
	FindByID(ctx context.Context, id string) (*models.Chapter, error)
}

// CacheInvalidator drops cached analytics after new attempts land.
type CacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SubmitAttemptRequest is the student submission payload.
type SubmitAttemptRequest struct {
	ChapterID    string  `json:"chapter_id" validate:"required"`
	PaperID      *string `json:"paper_id,omitempty"`
	Score        float64 `json:"score" validate:"min=0"`
	MaxScore     float64 `json:"max_score" validate:"required,gt=0"`
	TabSwitches  int     `json:"tab_switches" validate:"min=0"`
	AbsenceFlags int     `json:"absence_flags" validate:"min=0"`
}

// AttemptService records student sittings. Submission re-checks the chapter
// gate at write time so a deadline that passed mid-session still blocks a new
// row only when the chapter itself has moved on.
type AttemptService struct {
	repo        AttemptRepository
	chapters    ChapterGate
	scope       *ScopeService
	invalidator CacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	clock       func() time.Time
}

// NewAttemptService constructs an attempt service.
func NewAttemptService(repo AttemptRepository, chapters ChapterGate, scope *ScopeService, validate *validator.Validate, logger *zap.Logger) *AttemptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptService{
		repo:      repo,
		chapters:  chapters,
		scope:     scope,
		validator: validate,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// SetCacheInvalidator attaches analytics cache invalidation.
func (s *AttemptService) SetCacheInvalidator(invalidator CacheInvalidator) {
	s.invalidator = invalidator
}

// Submit records an attempt for the calling student.
func (s *AttemptService) Submit(ctx context.Context, claims *models.JWTClaims, school string, req SubmitAttemptRequest) (*models.Attempt, error) {
	if !s.scope.Can(claims.Role, CapSubmitAttempt) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}
	if req.Score > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds maximum")
	}

	chapter, err := s.chapters.FindByID(ctx, req.ChapterID)
	if err != nil {
		return nil, appErrors.ErrScopeDenied
	}
	target := ScopeTarget{SchoolID: chapter.SchoolID, Grade: chapter.Grade}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}
	if !chapter.AttemptOpen(s.clock()) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "chapter is not open for attempts")
	}

	attempt := &models.Attempt{
		SchoolID:     school,
		StudentID:    claims.UserID,
		ChapterID:    chapter.ID,
		PaperID:      req.PaperID,
		Subject:      chapter.Subject,
		Grade:        chapter.Grade,
		Score:        req.Score,
		MaxScore:     req.MaxScore,
		Percentage:   req.Score / req.MaxScore * 100,
		TabSwitches:  req.TabSwitches,
		AbsenceFlags: req.AbsenceFlags,
		SubmittedAt:  s.clock(),
	}
	if err := s.repo.Create(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record attempt")
	}

	// New attempts change every derived classification for the school.
	if s.invalidator != nil {
		if err := s.invalidator.DeleteByPattern(ctx, "analytics:*"+school+"*"); err != nil {
			s.logger.Warn("analytics cache invalidation failed", zap.String("school_id", school), zap.Error(err))
		}
	}
	return attempt, nil
}

// History returns the caller's own attempt history. Students see their own
// rows only; staff read history through the analytics surface instead.
func (s *AttemptService) History(ctx context.Context, claims *models.JWTClaims, school string) ([]models.Attempt, error) {
	if claims.Role != models.RoleStudent {
		return nil, appErrors.ErrScopeDenied
	}
	attempts, err := s.repo.ListWindow(ctx, models.AttemptFilter{SchoolID: school, StudentID: claims.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list attempts")
	}
	return attempts, nil
}
