package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

type mockWingRepo struct {
	wings map[string]*models.Wing
}

func (m *mockWingRepo) FindByID(ctx context.Context, id string) (*models.Wing, error) {
	wing, ok := m.wings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return wing, nil
}

func newTestScope() *ScopeService {
	wings := &mockWingRepo{wings: map[string]*models.Wing{
		"wing-middle": {ID: "wing-middle", SchoolID: "school-1", Name: "Middle", MinGrade: 6, MaxGrade: 8},
		"wing-senior": {ID: "wing-senior", SchoolID: "school-1", Name: "Senior", MinGrade: 9, MaxGrade: 12},
		"wing-other":  {ID: "wing-other", SchoolID: "school-2", Name: "Middle", MinGrade: 6, MaxGrade: 8},
	}}
	return NewScopeService(wings, nil)
}

func hodClaims(subjects ...string) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:   "hod-1",
		SchoolID: "school-1",
		Role:     models.RoleHOD,
		WingID:   "wing-middle",
		Subjects: subjects,
	}
}

func TestCanCapabilityTable(t *testing.T) {
	scope := newTestScope()

	assert.True(t, scope.Can(models.RoleTeacher, CapSubmitQuestion))
	assert.False(t, scope.Can(models.RoleTeacher, CapReviewQuestion))
	assert.True(t, scope.Can(models.RoleHOD, CapReviewQuestion))
	assert.True(t, scope.Can(models.RoleExamCommittee, CapCommitteeDecide))
	assert.False(t, scope.Can(models.RoleHOD, CapCommitteeDecide))
	assert.False(t, scope.Can(models.RolePrincipal, CapAdvancePaper))
	assert.True(t, scope.Can(models.RolePrincipal, CapViewAnalytics))
	assert.False(t, scope.Can(models.RoleStudent, CapViewAnalytics))
	assert.False(t, scope.Can(models.RoleParent, CapSubmitAttempt))
}

func TestEffectiveSchoolSuperAdminRequiresSelection(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "sa-1", Role: models.RoleSuperAdmin}

	_, err := scope.EffectiveSchool(claims, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	school, err := scope.EffectiveSchool(claims, "school-2")
	require.NoError(t, err)
	assert.Equal(t, "school-2", school)
}

func TestEffectiveSchoolRegularUser(t *testing.T) {
	scope := newTestScope()
	claims := hodClaims("Mathematics")

	school, err := scope.EffectiveSchool(claims, "")
	require.NoError(t, err)
	assert.Equal(t, "school-1", school)
}

func TestAuthorizeTenantMismatch(t *testing.T) {
	scope := newTestScope()
	claims := hodClaims("Mathematics")

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-2", Grade: 7, Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeSubjectConjunction(t *testing.T) {
	scope := newTestScope()
	// HOD of Math and Science. Each request is checked against the one
	// subject it names, never against the union.
	claims := hodClaims("Mathematics", "Science")

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, Subject: "Mathematics"})
	require.NoError(t, err)

	err = scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, Subject: "English"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeWingGradeRange(t *testing.T) {
	scope := newTestScope()
	claims := hodClaims("Mathematics")

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 8, Subject: "Mathematics"})
	require.NoError(t, err)

	// Grade 10 is senior wing; the middle-wing HOD is out of range.
	err = scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 10, Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeMissingWingFailsClosed(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "t-1", SchoolID: "school-1", Role: models.RoleTeacher, Subjects: []string{"Mathematics"}}

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeUnknownWingFailsClosed(t *testing.T) {
	scope := newTestScope()
	claims := hodClaims("Mathematics")
	claims.WingID = "wing-missing"

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeWingFromOtherSchool(t *testing.T) {
	scope := newTestScope()
	claims := hodClaims("Mathematics")
	claims.WingID = "wing-other"

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeStudentGrade(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "stu-1", SchoolID: "school-1", Role: models.RoleStudent, Grade: 7}

	require.NoError(t, scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7}))

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 8})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeStudentOwnership(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "stu-1", SchoolID: "school-1", Role: models.RoleStudent, Grade: 7}

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7, OwnerID: "stu-2"})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizeParentDenied(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "p-1", SchoolID: "school-1", Role: models.RoleParent}

	err := scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 7})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAuthorizePrincipalSchoolWide(t *testing.T) {
	scope := newTestScope()
	claims := &models.JWTClaims{UserID: "pr-1", SchoolID: "school-1", Role: models.RolePrincipal}

	require.NoError(t, scope.Authorize(context.Background(), claims, "school-1",
		ScopeTarget{SchoolID: "school-1", Grade: 11, Subject: "Physics"}))
}

func TestScopeDeniedSharesNotFoundShape(t *testing.T) {
	denied := appErrors.FromError(appErrors.ErrScopeDenied)
	notFound := appErrors.FromError(appErrors.ErrNotFound)

	assert.Equal(t, notFound.Code, denied.Code)
	assert.Equal(t, notFound.Status, denied.Status)
	assert.Equal(t, notFound.Message, denied.Message)
	// In-process the sentinels stay distinct.
	assert.False(t, errors.Is(appErrors.ErrScopeDenied, appErrors.ErrNotFound))
}
