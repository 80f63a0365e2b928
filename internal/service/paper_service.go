package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// PaperRepository describes the persistence the paper workflow needs.
type PaperRepository interface {
	Create(ctx context.Context, p *models.Paper, audit *models.AuditLog) error
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error)
	Transition(ctx context.Context, id string, from, to models.PaperStatus, locked bool, returnReason *string, audit *models.AuditLog) error
	UpdatePrintMeta(ctx context.Context, id string, copies int, printed, delivered bool, audit *models.AuditLog) error
}

// QuestionPicker resolves blueprint sections into approved question ids and
// reports current statuses so the review submission edge can re-check them.
type QuestionPicker interface {
	PickApproved(ctx context.Context, schoolID, subject string, grade int, qtype models.QuestionType, marks int, chapterID *string, difficulty *models.Difficulty, limit int) ([]string, error)
	StatusesByIDs(ctx context.Context, ids []string) (map[string]models.QuestionStatus, error)
}

// BlueprintReader loads templates for paper generation.
type BlueprintReader interface {
	FindByID(ctx context.Context, id string) (*models.Blueprint, error)
}

// AuditReader lists the audit trail of a resource.
type AuditReader interface {
	ListByResource(ctx context.Context, schoolID, resource, resourceID string) ([]models.AuditLog, error)
}

// GeneratePaperRequest asks for a paper from an approved blueprint.
type GeneratePaperRequest struct {
	BlueprintID string `json:"blueprint_id" validate:"required"`
}

// AdvancePaperRequest moves a paper one workflow step forward. Reason is
// mandatory when the target is sent_back.
type AdvancePaperRequest struct {
	Target models.PaperStatus `json:"target" validate:"required"`
	Reason string             `json:"reason"`
}

// PrintMetaRequest updates print and delivery metadata on a locked paper.
type PrintMetaRequest struct {
	Copies    int  `json:"copies" validate:"min=0"`
	Printed   bool `json:"printed"`
	Delivered bool `json:"delivered"`
}

// paperEdge is one permitted workflow transition and the capability it
// requires. ownerOnly edges additionally demand the generating HOD.
type paperEdge struct {
	to         models.PaperStatus
	capability Capability
	ownerOnly  bool
	action     string
}

// paperTransitions is the complete workflow graph. Anything absent here is an
// invalid transition; there is no way to skip a state or move backward except
// the committee edges listed explicitly (send-back and unlock). The two
// forward edges before the committee belong to the HOD who generated the
// paper; another HOD in the same wing cannot push someone else's draft.
var paperTransitions = map[models.PaperStatus][]paperEdge{
	models.PaperDraft: {
		{to: models.PaperSentForReview, capability: CapAdvancePaper, ownerOnly: true, action: models.AuditPaperAdvance},
	},
	models.PaperSentForReview: {
		{to: models.PaperSentToCommittee, capability: CapAdvancePaper, ownerOnly: true, action: models.AuditPaperAdvance},
	},
	models.PaperSentToCommittee: {
		{to: models.PaperApprovedForPrint, capability: CapCommitteeDecide, action: models.AuditPaperAdvance},
		{to: models.PaperSentBack, capability: CapCommitteeDecide, action: models.AuditPaperSentBack},
	},
	models.PaperApprovedForPrint: {
		{to: models.PaperLocked, capability: CapCommitteeDecide, action: models.AuditPaperLock},
	},
	models.PaperLocked: {
		{to: models.PaperPrinted, capability: CapCommitteeDecide, action: models.AuditPaperAdvance},
		{to: models.PaperApprovedForPrint, capability: CapCommitteeDecide, action: models.AuditPaperUnlock},
	},
}

// PaperService drives the exam paper workflow from generation through print.
type PaperService struct {
	repo       PaperRepository
	blueprints BlueprintReader
	questions  QuestionPicker
	audits     AuditReader
	scope      *ScopeService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPaperService constructs a paper service.
func NewPaperService(repo PaperRepository, blueprints BlueprintReader, questions QuestionPicker, audits AuditReader, scope *ScopeService, validate *validator.Validate, logger *zap.Logger) *PaperService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperService{
		repo:       repo,
		blueprints: blueprints,
		questions:  questions,
		audits:     audits,
		scope:      scope,
		validator:  validate,
		logger:     logger,
	}
}

// Generate resolves an approved blueprint into a concrete draft paper. Each
// section is filled from the approved question bank; if any section cannot be
// fully satisfied the generation fails whole, no partial paper is stored.
func (s *PaperService) Generate(ctx context.Context, claims *models.JWTClaims, school string, req GeneratePaperRequest) (*models.Paper, error) {
	if !s.scope.Can(claims.Role, CapGeneratePaper) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	blueprint, err := s.blueprints.FindByID(ctx, req.BlueprintID)
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
	if blueprint.Status != models.BlueprintApproved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "blueprint is not approved")
	}

	var questionIDs []string
	seen := make(map[string]struct{})
	for _, section := range blueprint.Sections {
		ids, err := s.questions.PickApproved(ctx, school, blueprint.Subject, blueprint.Grade,
			section.QuestionType, section.MarksEach, section.ChapterID, section.Difficulty, section.QuestionCount+len(seen))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pick questions")
		}

		picked := 0
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			questionIDs = append(questionIDs, id)
			picked++
			if picked == section.QuestionCount {
				break
			}
		}
		if picked < section.QuestionCount {
			s.logger.Warn("question bank cannot satisfy section",
				zap.String("blueprint_id", blueprint.ID),
				zap.String("section", section.Name),
				zap.Int("wanted", section.QuestionCount),
				zap.Int("found", picked))
			return nil, appErrors.Clone(appErrors.ErrValidation,
				"not enough approved questions for section "+section.Name)
		}
	}

	paper := &models.Paper{
		ID:          uuid.NewString(),
		SchoolID:    school,
		BlueprintID: blueprint.ID,
		Subject:     blueprint.Subject,
		Grade:       blueprint.Grade,
		QuestionIDs: questionIDs,
		Status:      models.PaperDraft,
		GeneratorID: claims.UserID,
	}
	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     models.AuditPaperGenerate,
		Resource:   "paper",
		ResourceID: paper.ID,
		Detail:     "generated from blueprint " + blueprint.ID,
	}
	if err := s.repo.Create(ctx, paper, audit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create paper")
	}
	return paper, nil
}

// Advance moves a paper one workflow step. The transition table is the single
// authority on which moves exist and which role may perform them; send-back
// additionally requires a reason, which is stored on the paper.
func (s *PaperService) Advance(ctx context.Context, claims *models.JWTClaims, school, id string, req AdvancePaperRequest) (*models.Paper, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid advance payload")
	}

	paper, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}

	edge, ok := findEdge(paper.Status, req.Target)
	if !ok {
		// Content mutations on a locked paper answer with the locked error,
		// not a generic transition conflict.
		if paper.ContentImmutable() && req.Target != models.PaperPrinted && req.Target != models.PaperApprovedForPrint {
			return nil, appErrors.ErrLockedState
		}
		return nil, appErrors.ErrInvalidTransition
	}
	if !s.scope.Can(claims.Role, edge.capability) {
		return nil, appErrors.ErrScopeDenied
	}
	if edge.ownerOnly && claims.UserID != paper.GeneratorID {
		return nil, appErrors.ErrScopeDenied
	}
	if paper.Status == models.PaperDraft && req.Target == models.PaperSentForReview {
		if err := s.checkQuestionsApproved(ctx, paper.QuestionIDs); err != nil {
			return nil, err
		}
	}

	reason := strings.TrimSpace(req.Reason)
	var (
		reasonPtr *string
		detail    string
	)
	switch req.Target {
	case models.PaperSentBack:
		if reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "send-back reason is required")
		}
		reasonPtr = &reason
		detail = reason
	case models.PaperApprovedForPrint:
		if paper.Status == models.PaperLocked {
			detail = "paper unlocked by committee"
		} else {
			detail = "approved for print"
		}
	case models.PaperLocked:
		detail = "paper locked"
	default:
		detail = "advanced to " + string(req.Target)
	}

	// sent_back is a transit label only: the stored state returns to draft so
	// the generating HOD owns the paper again, with the reason preserved.
	storedTarget := req.Target
	if req.Target == models.PaperSentBack {
		storedTarget = models.PaperDraft
	}
	locked := storedTarget == models.PaperLocked || storedTarget == models.PaperPrinted

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     edge.action,
		Resource:   "paper",
		ResourceID: paper.ID,
		Detail:     detail,
	}
	if err := s.repo.Transition(ctx, paper.ID, paper.Status, storedTarget, locked, reasonPtr, audit); err != nil {
		return nil, err
	}

	paper.Status = storedTarget
	paper.Locked = locked
	if reasonPtr != nil {
		paper.ReturnReason = reasonPtr
	}
	return paper, nil
}

// UpdatePrintMeta changes copies/printed/delivered on a locked or printed
// paper. This is the single mutation the lock does not freeze.
func (s *PaperService) UpdatePrintMeta(ctx context.Context, claims *models.JWTClaims, school, id string, req PrintMetaRequest) (*models.Paper, error) {
	if !s.scope.Can(claims.Role, CapPrintMeta) {
		return nil, appErrors.ErrScopeDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid print meta payload")
	}

	paper, err := s.fetchScoped(ctx, claims, school, id)
	if err != nil {
		return nil, err
	}
	if !paper.ContentImmutable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "print metadata applies to locked papers only")
	}

	audit := &models.AuditLog{
		SchoolID:   school,
		ActorID:    &claims.UserID,
		Action:     models.AuditPaperPrintMeta,
		Resource:   "paper",
		ResourceID: paper.ID,
		Detail:     "print metadata updated",
	}
	if err := s.repo.UpdatePrintMeta(ctx, paper.ID, req.Copies, req.Printed, req.Delivered, audit); err != nil {
		return nil, err
	}

	paper.Copies = req.Copies
	paper.Printed = req.Printed
	paper.Delivered = req.Delivered
	return paper, nil
}

// Get returns one paper within the caller's scope.
func (s *PaperService) Get(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Paper, error) {
	return s.fetchScoped(ctx, claims, school, id)
}

// List returns papers visible to the caller.
func (s *PaperService) List(ctx context.Context, claims *models.JWTClaims, school string, filter models.PaperFilter) ([]models.Paper, *models.Pagination, error) {
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

	papers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list papers")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return papers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// AuditTrail returns the workflow history of a paper.
func (s *PaperService) AuditTrail(ctx context.Context, claims *models.JWTClaims, school, id string) ([]models.AuditLog, error) {
	if _, err := s.fetchScoped(ctx, claims, school, id); err != nil {
		return nil, err
	}
	logs, err := s.audits.ListByResource(ctx, school, "paper", id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list paper audit trail")
	}
	return logs, nil
}

// checkQuestionsApproved re-reads the resolved question list before a draft
// goes out for review. Generation picks approved questions only, but the
// submission edge verifies none of them moved in the meantime.
func (s *PaperService) checkQuestionsApproved(ctx context.Context, ids []string) error {
	statuses, err := s.questions.StatusesByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check question statuses")
	}
	for _, id := range ids {
		if statuses[id] != models.QuestionApproved {
			return appErrors.Clone(appErrors.ErrValidation, "question "+id+" is not approved")
		}
	}
	return nil
}

func (s *PaperService) fetchScoped(ctx context.Context, claims *models.JWTClaims, school, id string) (*models.Paper, error) {
	paper, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScopeDenied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fetch paper")
	}
	target := ScopeTarget{SchoolID: paper.SchoolID, Grade: paper.Grade, Subject: paper.Subject}
	if err := s.scope.Authorize(ctx, claims, school, target); err != nil {
		return nil, err
	}
	return paper, nil
}

func findEdge(from, to models.PaperStatus) (paperEdge, bool) {
	for _, edge := range paperTransitions[from] {
		if edge.to == to {
			return edge, true
		}
	}
	return paperEdge{}, false
}
