package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// WingReader supplies wing definitions for grade-range checks.
type WingReader interface {
	FindByID(ctx context.Context, id string) (*models.Wing, error)
}

// ScopeTarget describes the entity an operation wants to touch. Zero-valued
// fields are not checked: a target without a subject is not subject-scoped.
type ScopeTarget struct {
	SchoolID string
	Grade    int
	Subject  string
	OwnerID  string
}

// Capability names a role-gated operation class.
type Capability string

const (
	CapSubmitQuestion   Capability = "question:submit"
	CapReviewQuestion   Capability = "question:review"
	CapManageBlueprint  Capability = "blueprint:manage"
	CapGeneratePaper    Capability = "paper:generate"
	CapAdvancePaper     Capability = "paper:advance"
	CapCommitteeDecide  Capability = "paper:committee"
	CapPrintMeta        Capability = "paper:print_meta"
	CapManageChapter    Capability = "chapter:manage"
	CapSubmitAttempt    Capability = "attempt:submit"
	CapViewAnalytics    Capability = "analytics:view"
	CapViewWorkflowRead Capability = "workflow:read"
)

// capabilities is the authoritative role table. UI affordances that are not
// granted here are rejected server-side, whatever the client renders.
var capabilities = map[Capability]map[models.UserRole]struct{}{
	CapSubmitQuestion:  roleSet(models.RoleTeacher),
	CapReviewQuestion:  roleSet(models.RoleHOD),
	CapManageBlueprint: roleSet(models.RoleHOD),
	CapGeneratePaper:   roleSet(models.RoleHOD),
	CapAdvancePaper:    roleSet(models.RoleHOD, models.RoleExamCommittee),
	CapCommitteeDecide: roleSet(models.RoleExamCommittee),
	CapPrintMeta:       roleSet(models.RoleExamCommittee),
	CapManageChapter:   roleSet(models.RoleHOD),
	CapSubmitAttempt:   roleSet(models.RoleStudent),
	CapViewAnalytics: roleSet(models.RoleHOD, models.RolePrincipal, models.RoleExamCommittee,
		models.RoleAdmin, models.RoleSuperAdmin),
	CapViewWorkflowRead: roleSet(models.RoleTeacher, models.RoleHOD, models.RolePrincipal,
		models.RoleExamCommittee, models.RoleAdmin, models.RoleSuperAdmin),
}

func roleSet(roles ...models.UserRole) map[models.UserRole]struct{} {
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ScopeService answers whether a caller may touch an entity. Every denial is
// ErrScopeDenied, which shares its wire shape with not-found so callers
// cannot probe for entities outside their scope.
type ScopeService struct {
	wings  WingReader
	logger *zap.Logger

	mu        sync.RWMutex
	wingCache map[string]*models.Wing
}

// NewScopeService constructs a scope service.
func NewScopeService(wings WingReader, logger *zap.Logger) *ScopeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{wings: wings, logger: logger, wingCache: make(map[string]*models.Wing)}
}

// Can reports whether the role holds the capability at all. It says nothing
// about individual entities; Authorize does that.
func (s *ScopeService) Can(role models.UserRole, capability Capability) bool {
	set, ok := capabilities[capability]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// EffectiveSchool resolves the tenant an operation runs against. Regular
// callers always act within their own school. A super admin carries no
// school of their own and must select one explicitly per request; without a
// selection every call fails closed.
func (s *ScopeService) EffectiveSchool(claims *models.JWTClaims, actingSchool string) (string, error) {
	if claims.Role == models.RoleSuperAdmin {
		if actingSchool == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "acting school not selected")
		}
		return actingSchool, nil
	}
	if claims.SchoolID == "" {
		return "", appErrors.ErrScopeDenied
	}
	return claims.SchoolID, nil
}

// Authorize applies the three scope filters in order: tenant, wing/grade,
// subject. school must come from EffectiveSchool.
func (s *ScopeService) Authorize(ctx context.Context, claims *models.JWTClaims, school string, target ScopeTarget) error {
	if school == "" || target.SchoolID == "" || school != target.SchoolID {
		return appErrors.ErrScopeDenied
	}

	switch claims.Role {
	case models.RoleTeacher, models.RoleHOD:
		return s.authorizeWingScoped(ctx, claims, school, target)
	case models.RolePrincipal, models.RoleExamCommittee, models.RoleAdmin, models.RoleSuperAdmin:
		// School-wide visibility; tenant filter already passed.
		return nil
	case models.RoleStudent:
		if claims.Grade == 0 || (target.Grade > 0 && target.Grade != claims.Grade) {
			return appErrors.ErrScopeDenied
		}
		if target.OwnerID != "" && target.OwnerID != claims.UserID {
			return appErrors.ErrScopeDenied
		}
		return nil
	case models.RoleParent:
		// Parents read through dedicated views only; direct entity access
		// fails closed.
		return appErrors.ErrScopeDenied
	default:
		return appErrors.ErrScopeDenied
	}
}

func (s *ScopeService) authorizeWingScoped(ctx context.Context, claims *models.JWTClaims, school string, target ScopeTarget) error {
	if claims.WingID == "" {
		return appErrors.ErrScopeDenied
	}

	wing, err := s.wing(ctx, claims.WingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrScopeDenied
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve wing")
	}
	if wing.SchoolID != school {
		return appErrors.ErrScopeDenied
	}
	if target.Grade > 0 && !wing.ContainsGrade(target.Grade) {
		return appErrors.ErrScopeDenied
	}

	// Subject scope is evaluated per requested subject, never as a union.
	if target.Subject != "" && !claims.HasSubject(target.Subject) {
		return appErrors.ErrScopeDenied
	}
	return nil
}

func (s *ScopeService) wing(ctx context.Context, id string) (*models.Wing, error) {
	s.mu.RLock()
	cached, ok := s.wingCache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	wing, err := s.wings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.wingCache[id] = wing
	s.mu.Unlock()
	return wing, nil
}
