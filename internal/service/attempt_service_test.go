package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

type mockAttemptRepo struct {
	attempts []models.Attempt
}

func (m *mockAttemptRepo) Create(ctx context.Context, a *models.Attempt) error {
	a.ID = "at-new"
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *mockAttemptRepo) ListWindow(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error) {
	var result []models.Attempt
	for _, a := range m.attempts {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "stu-1", SchoolID: "school-1", Role: models.RoleStudent, Grade: 7}
}

func newAttemptService(repo *mockAttemptRepo, chapters *mockChapterRepo) *AttemptService {
	return NewAttemptService(repo, chapters, newTestScope(), nil, nil)
}

func TestAttemptSubmitOpenChapter(t *testing.T) {
	repo := &mockAttemptRepo{}
	chapters := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, nil))
	svc := newAttemptService(repo, chapters)

	attempt, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     17,
		MaxScore:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", attempt.StudentID)
	assert.Equal(t, "Mathematics", attempt.Subject)
	assert.InDelta(t, 85.0, attempt.Percentage, 0.01)
	require.Len(t, repo.attempts, 1)
}

func TestAttemptSubmitClosedChapter(t *testing.T) {
	repo := &mockAttemptRepo{}
	chapters := newMockChapterRepo(testChapter("ch-1", models.ChapterLocked, nil))
	svc := newAttemptService(repo, chapters)

	_, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     10,
		MaxScore:  20,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, repo.attempts)
}

func TestAttemptSubmitPastDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	repo := &mockAttemptRepo{}
	chapters := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, &deadline))
	svc := newAttemptService(repo, chapters)
	svc.clock = sweepClock(deadline.Add(time.Minute))

	_, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     10,
		MaxScore:  20,
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestAttemptSubmitScoreAboveMax(t *testing.T) {
	repo := &mockAttemptRepo{}
	chapters := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, nil))
	svc := newAttemptService(repo, chapters)

	_, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     25,
		MaxScore:  20,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAttemptSubmitWrongGrade(t *testing.T) {
	chapter := testChapter("ch-1", models.ChapterUnlocked, nil)
	chapter.Grade = 8
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, newMockChapterRepo(chapter))

	_, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     10,
		MaxScore:  20,
	})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestAttemptSubmitByTeacherDenied(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, nil)))

	_, err := svc.Submit(context.Background(), teacherClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     10,
		MaxScore:  20,
	})
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

type invalidatorStub struct {
	patterns []string
}

func (s *invalidatorStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

func TestAttemptSubmitInvalidatesAnalytics(t *testing.T) {
	repo := &mockAttemptRepo{}
	chapters := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, nil))
	svc := newAttemptService(repo, chapters)
	invalidator := &invalidatorStub{}
	svc.SetCacheInvalidator(invalidator)

	_, err := svc.Submit(context.Background(), studentClaims(), "school-1", SubmitAttemptRequest{
		ChapterID: "ch-1",
		Score:     10,
		MaxScore:  20,
	})
	require.NoError(t, err)
	require.Len(t, invalidator.patterns, 1)
	assert.Contains(t, invalidator.patterns[0], "school-1")
}

func TestAttemptHistoryOwnRowsOnly(t *testing.T) {
	repo := &mockAttemptRepo{attempts: []models.Attempt{
		{ID: "at-1", SchoolID: "school-1", StudentID: "stu-1"},
		{ID: "at-2", SchoolID: "school-1", StudentID: "stu-2"},
	}}
	svc := newAttemptService(repo, newMockChapterRepo())

	history, err := svc.History(context.Background(), studentClaims(), "school-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "at-1", history[0].ID)

	_, err = svc.History(context.Background(), teacherClaims(), "school-1")
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}
