package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/pkg/jobs"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// SweepJobType names the recurring deadline-sweep job.
const SweepJobType = "chapter_deadline_sweep"

// ChapterRepository describes the persistence the chapter scheduler needs.
type ChapterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Chapter, error)
	List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error)
	Transition(ctx context.Context, id string, from, to models.ChapterStatus, audit *models.AuditLog) error
	SetDeadline(ctx context.Context, id string, deadline time.Time, audit *models.AuditLog) error
	SetScoresRevealed(ctx context.Context, id string, revealed bool, audit *models.AuditLog) error
	ListDeadlineExpired(ctx context.Context, now time.Time) ([]models.Chapter, error)
	CompleteExpired(ctx context.Context, id string, now time.Time, audit *models.AuditLog) (bool, error)
	MarkNeedsAttention(ctx context.Context, id string, audit *models.AuditLog) (bool, error)
}

// AttemptChecker reports whether attempts exist for a chapter.
type AttemptChecker interface {
	ExistsForChapter(ctx context.Context, chapterID string) (bool, error)
}

// SetDeadlineRequest writes or edits a chapter deadline.
type SetDeadlineRequest struct {
	Deadline time.Time `json:"deadline" validate:"required"`
}

// chapterEdge is one permitted manual access-state change.
type chapterEdge struct {
	to     models.ChapterStatus
	action string
}

// chapterTransitions lists the manual moves an HOD may make. The sweep owns
// the unlocked -> completed edge; it is deliberately absent here so nobody
// completes a chapter by hand while attempts may still arrive.
var chapterTransitions = map[models.ChapterStatus][]chapterEdge{
	models.ChapterDraft: {
		{to: models.ChapterLocked, action: models.AuditChapterLock},
	},
	models.ChapterLocked: {
		{to: models.ChapterUnlocked, action: models.AuditChapterUnlock},
	},
	models.ChapterUnlocked: {
		{to: models.ChapterLocked, action: models.AuditChapterLock},
	},
}

// ChapterService gates student access to chapter tests and runs the deadline
// sweep that completes expired chapters.
type ChapterService struct {
	repo      ChapterRepository
	attempts  AttemptChecker
	scope     *ScopeService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
}

// NewChapterService constructs a chapter service.
func NewChapterService(repo ChapterRepository, attempts AttemptChecker, scope *ScopeService, validate *validator.Validate, logger *zap.Logger) *ChapterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChapterService{
		repo:      repo,
		attempts:  attempts,
		scope:     scope,
		validator: validate,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches sweep instrumentation.
func (s *ChapterService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// List returns chapters visible to the caller, ordered by sequence position.
func (s *ChapterService) List(ctx context.Context, claims *models.JWTClaims, school string, filter models.ChapterFilter) ([]models.Chapter, error) {
	if filter.Subject != "" || filter.Grade > 0 {
		target := ScopeTarget{SchoolID: school, Grade: filter.Grade, Subject: filter.Subject}
		if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
			return nil, err
		}
	}
	filter.SchoolID = school
	if claims.Role == models.RoleStudent {
		filter.Grade = claims.Grade
	}

	chapters, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list chapters")
	}
	return chapters, nil
}

// Get returns one chapter within the caller's scope.
func (s *ChapterService) Get(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Chapter, error) {
	return s.fetchScoped(ctx, claims, school, id)
}

// Lock closes student access to a chapter.
func (s *ChapterService) Lock(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Chapter, error) {
	return s.transition(ctx, claims, school, id, models.ChapterLocked)
}

// Unlock opens a chapter for attempts.
func (s *ChapterService) Unlock(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Chapter, error) {
	return s.transition(ctx, claims, school, id, models.ChapterUnlocked)
}

// SetDeadline writes the chapter deadline. Deadlines may be set or moved
// while the chapter is locked or unlocked; completed chapters are final.
func (s *ChapterService) SetDeadline(ctx context.Context, claims *models.JWTClaims, school, id string, req SetDeadlineRequest) (*models.Chapter, error) {
	if !s.scope.Can(claims.Role, CapManageChapter) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}

	chapter, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     models.AuditChapterDeadline,
		Resource:   "chapter",
		ResourceID: chapter.ID,
		Detail:     "deadline set to " + req.Deadline.UTC().Format(time.RFC3339),
	}
	if err := s.repo.SetDeadline(ctx, chapter.ID, req.Deadline, audit); err != nil {
		return nil, err
	}

	deadline := req.Deadline.UTC()
	chapter.Deadline = &deadline
	return chapter, nil
}

// RevealScores makes scores visible to students and parents for a chapter.
func (s *ChapterService) RevealScores(ctx context.Context, claims *models.JWTClaims, school, id string, revealed bool) (*models.Chapter, error) {
	if !s.scope.Can(claims.Role, CapManageChapter) {
		return nil, appErrors.ErrScopeDenied
	}
	chapter, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     models.AuditChapterRevealScores,
		Resource:   "chapter",
		ResourceID: chapter.ID,
		Detail:     "scores revealed toggled",
	}
	if err := s.repo.SetScoresRevealed(ctx, chapter.ID, revealed, audit); err != nil {
		return nil, err
	}
	chapter.ScoresRevealed = revealed
	return chapter, nil
}

// CanAttempt reports whether the calling student may start an attempt now.
// The answer is evaluated against the live chapter row, never cached state.
func (s *ChapterService) CanAttempt(ctx context.Context, claims *models.JWTClaims, school, id string) (bool, *models.Chapter, error) {
	if !s.scope.Can(claims.Role, CapSubmitAttempt) {
		return false, nil, appErrors.ErrScopeDenied
	}
	chapter, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return false, nil, err
	}
	return chapter.AttemptOpen(s.clock()), chapter, nil
}

// RunSweep is the handler behind the periodic deadline sweep. It completes
// every expired chapter that has attempts and flags the rest for attention.
// Both writes are conditional, so re-running the sweep over the same set is
// a no-op: completed chapters match no guard and flagged chapters stay
// flagged once. A storage failure on one chapter is logged and skipped; the
// chapter stays expired and the next run picks it up again.
func (s *ChapterService) RunSweep(ctx context.Context, _ jobs.Job) error {
	now := s.clock()
	expired, err := s.repo.ListDeadlineExpired(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		s.metrics.ObserveSweep(0, 0)
		return nil
	}

	completed, flagged := 0, 0
	for _, chapter := range expired {
		hasAttempts, err := s.attempts.ExistsForChapter(ctx, chapter.ID)
		if err != nil {
			s.logger.Warn("sweep skipping chapter",
				zap.String("chapter_id", chapter.ID), zap.Error(err))
			continue
		}

		if hasAttempts {
			audit := &models.AuditLog{
				SchoolID:   chapter.SchoolID,
				Action:     models.AuditChapterSweepComplete,
				Resource:   "chapter",
				ResourceID: chapter.ID,
				Detail:     "deadline passed, chapter completed by sweep",
			}
			changed, err := s.repo.CompleteExpired(ctx, chapter.ID, now, audit)
			if err != nil {
				s.logger.Warn("sweep skipping chapter",
					zap.String("chapter_id", chapter.ID), zap.Error(err))
				continue
			}
			if changed {
				completed++
			}
			continue
		}

		audit := &models.AuditLog{
			SchoolID:   chapter.SchoolID,
			Action:     models.AuditChapterSweepAttention,
			Resource:   "chapter",
			ResourceID: chapter.ID,
			Detail:     "deadline passed with no attempts",
		}
		changed, err := s.repo.MarkNeedsAttention(ctx, chapter.ID, audit)
		if err != nil {
			s.logger.Warn("sweep skipping chapter",
				zap.String("chapter_id", chapter.ID), zap.Error(err))
			continue
		}
		if changed {
			flagged++
		}
	}

	s.metrics.ObserveSweep(completed, flagged)
	if completed > 0 || flagged > 0 {
		s.logger.Info("deadline sweep finished",
			zap.Int("expired", len(expired)),
			zap.Int("completed", completed),
			zap.Int("flagged", flagged))
	}
	return nil
}

func (s *ChapterService) transition(ctx context.Context, claims *models.JWTClaims, school, id string, to models.ChapterStatus) (*models.Chapter, error) {
	if !s.scope.Can(claims.Role, CapManageChapter) {
		return nil, appErrors.ErrScopeDenied
	}
	chapter, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}

	var action string
	found := false
	for _, edge := range chapterTransitions[chapter.Status] {
		if edge.to == to {
			action = edge.action
			found = true
			break
		}
	}
	if !found {
		return nil, appErrors.ErrInvalidTransition
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     action,
		Resource:   "chapter",
		ResourceID: chapter.ID,
		Detail:     string(chapter.Status) + " to " + string(to),
	}
	if err := s.repo.Transition(ctx, chapter.ID, chapter.Status, to, audit); err != nil {
		return nil, err
	}
	chapter.Status = to
	return chapter, nil
}

func (s *ChapterService) fetchScoped(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Chapter, error) {
	chapter, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScopeDenied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fetch chapter")
	}
	target := ScopeTarget{SchoolID: chapter.SchoolID, Grade: chapter.Grade, Subject: chapter.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}
	return chapter, nil
}
