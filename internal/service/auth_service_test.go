package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/pkg/config"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastLogins map[string]time.Time
}

func (m *mockUserRepo) FindByEmailAndSchoolCode(ctx context.Context, email, schoolCode string) (*models.User, error) {
	u, ok := m.users[schoolCode+"/"+email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogins == nil {
		m.lastLogins = make(map[string]time.Time)
	}
	m.lastLogins[id] = ts
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "prashnakosh", Expiration: time.Hour}
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	wing := "wing-middle"
	repo := &mockUserRepo{users: map[string]*models.User{
		"DPS01/hod@school.test": {
			ID:           "hod-1",
			SchoolID:     "school-1",
			Email:        "hod@school.test",
			PasswordHash: string(hash),
			FullName:     "Meera Iyer",
			Role:         models.RoleHOD,
			WingID:       &wing,
			Subjects:     []string{"Mathematics"},
			Active:       true,
		},
	}}
	return NewAuthService(repo, testJWTConfig(), nil, nil), repo
}

func TestAuthLoginIssuesScopedToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolCode: "DPS01",
		Email:      "hod@school.test",
		Password:   "s3cret!",
	})
	require.NoError(t, err)
	assert.Equal(t, "hod-1", resp.User.ID)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Contains(t, repo.lastLogins, "hod-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "hod-1", claims.UserID)
	assert.Equal(t, "school-1", claims.SchoolID)
	assert.Equal(t, models.RoleHOD, claims.Role)
	assert.Equal(t, "wing-middle", claims.WingID)
	assert.Equal(t, []string{"Mathematics"}, claims.Subjects)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolCode: "DPS01",
		Email:      "hod@school.test",
		Password:   "wrong",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginUnknownUser(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolCode: "DPS01",
		Email:      "nobody@school.test",
		Password:   "s3cret!",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["DPS01/hod@school.test"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolCode: "DPS01",
		Email:      "hod@school.test",
		Password:   "s3cret!",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthValidateGarbageToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
