package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
	"github.com/VipuDevAI/prashnakosh-api/pkg/jobs"
)

type mockChapterRepo struct {
	chapters map[string]*models.Chapter
	audits   []models.AuditLog
}

func newMockChapterRepo(chapters ...*models.Chapter) *mockChapterRepo {
	repo := &mockChapterRepo{chapters: make(map[string]*models.Chapter)}
	for _, c := range chapters {
		repo.chapters[c.ID] = c
	}
	return repo
}

func (m *mockChapterRepo) FindByID(ctx context.Context, id string) (*models.Chapter, error) {
	c, ok := m.chapters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *mockChapterRepo) List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error) {
	var result []models.Chapter
	for _, c := range m.chapters {
		if filter.SchoolID != "" && c.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Grade > 0 && c.Grade != filter.Grade {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockChapterRepo) Transition(ctx context.Context, id string, from, to models.ChapterStatus, audit *models.AuditLog) error {
	c, ok := m.chapters[id]
	if !ok || c.Status != from {
		return appErrors.ErrInvalidTransition
	}
	c.Status = to
	m.audits = append(m.audits, *audit)
	return nil
}

func (m *mockChapterRepo) SetDeadline(ctx context.Context, id string, deadline time.Time, audit *models.AuditLog) error {
	c, ok := m.chapters[id]
	if !ok || c.Status == models.ChapterCompleted {
		return appErrors.ErrInvalidTransition
	}
	d := deadline.UTC()
	c.Deadline = &d
	m.audits = append(m.audits, *audit)
	return nil
}

func (m *mockChapterRepo) SetScoresRevealed(ctx context.Context, id string, revealed bool, audit *models.AuditLog) error {
	c, ok := m.chapters[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	c.ScoresRevealed = revealed
	m.audits = append(m.audits, *audit)
	return nil
}

func (m *mockChapterRepo) ListDeadlineExpired(ctx context.Context, now time.Time) ([]models.Chapter, error) {
	var result []models.Chapter
	for _, c := range m.chapters {
		if c.Status != models.ChapterUnlocked || c.Deadline == nil {
			continue
		}
		if now.After(*c.Deadline) {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockChapterRepo) CompleteExpired(ctx context.Context, id string, now time.Time, audit *models.AuditLog) (bool, error) {
	c, ok := m.chapters[id]
	if !ok || c.Status != models.ChapterUnlocked || c.Deadline == nil || !now.After(*c.Deadline) {
		return false, nil
	}
	c.Status = models.ChapterCompleted
	m.audits = append(m.audits, *audit)
	return true, nil
}

func (m *mockChapterRepo) MarkNeedsAttention(ctx context.Context, id string, audit *models.AuditLog) (bool, error) {
	c, ok := m.chapters[id]
	if !ok || c.NeedsAttention {
		return false, nil
	}
	c.NeedsAttention = true
	m.audits = append(m.audits, *audit)
	return true, nil
}

type mockAttemptChecker struct {
	withAttempts map[string]bool
	failing      map[string]bool
}

func (m *mockAttemptChecker) ExistsForChapter(ctx context.Context, chapterID string) (bool, error) {
	if m.failing[chapterID] {
		return false, errors.New("attempt store unavailable")
	}
	return m.withAttempts[chapterID], nil
}

func sweepClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testChapter(id string, status models.ChapterStatus, deadline *time.Time) *models.Chapter {
	return &models.Chapter{
		ID:       id,
		SchoolID: "school-1",
		Subject:  "Mathematics",
		Grade:    7,
		Name:     "Chapter " + id,
		Status:   status,
		Deadline: deadline,
	}
}

func newChapterService(repo *mockChapterRepo, attempts *mockAttemptChecker) *ChapterService {
	if attempts == nil {
		attempts = &mockAttemptChecker{withAttempts: map[string]bool{}}
	}
	return NewChapterService(repo, attempts, newTestScope(), nil, nil)
}

func TestChapterManualTransitions(t *testing.T) {
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterDraft, nil))
	svc := newChapterService(repo, nil)
	hod := hodClaims("Mathematics")

	chapter, err := svc.Lock(context.Background(), hod, "school-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChapterLocked, chapter.Status)

	chapter, err = svc.Unlock(context.Background(), hod, "school-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChapterUnlocked, chapter.Status)

	chapter, err = svc.Lock(context.Background(), hod, "school-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChapterLocked, chapter.Status)
}

func TestChapterNoManualCompletion(t *testing.T) {
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, nil))
	svc := newChapterService(repo, nil)

	// completed is reachable only through the sweep; no manual edge exists.
	_, err := svc.transition(context.Background(), hodClaims("Mathematics"), "school-1", "ch-1", models.ChapterCompleted)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestChapterManageDeniedForTeacher(t *testing.T) {
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterDraft, nil))
	svc := newChapterService(repo, nil)

	_, err := svc.Lock(context.Background(), teacherClaims(), "school-1", "ch-1")
	assert.True(t, errors.Is(err, appErrors.ErrScopeDenied))
}

func TestChapterSetDeadlineWhileLocked(t *testing.T) {
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterLocked, nil))
	svc := newChapterService(repo, nil)
	deadline := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)

	chapter, err := svc.SetDeadline(context.Background(), hodClaims("Mathematics"), "school-1", "ch-1",
		SetDeadlineRequest{Deadline: deadline})
	require.NoError(t, err)
	require.NotNil(t, chapter.Deadline)
	assert.Equal(t, deadline, *chapter.Deadline)
}

func TestChapterCanAttemptDeadlineBoundary(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, &deadline))
	svc := newChapterService(repo, nil)
	student := &models.JWTClaims{UserID: "stu-1", SchoolID: "school-1", Role: models.RoleStudent, Grade: 7}

	// At the deadline instant attempts are still allowed.
	svc.clock = sweepClock(deadline)
	can, _, err := svc.CanAttempt(context.Background(), student, "school-1", "ch-1")
	require.NoError(t, err)
	assert.True(t, can)

	// One second past, they are not.
	svc.clock = sweepClock(deadline.Add(time.Second))
	can, _, err = svc.CanAttempt(context.Background(), student, "school-1", "ch-1")
	require.NoError(t, err)
	assert.False(t, can)
}

func TestChapterCanAttemptLocked(t *testing.T) {
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterLocked, nil))
	svc := newChapterService(repo, nil)
	student := &models.JWTClaims{UserID: "stu-1", SchoolID: "school-1", Role: models.RoleStudent, Grade: 7}

	can, _, err := svc.CanAttempt(context.Background(), student, "school-1", "ch-1")
	require.NoError(t, err)
	assert.False(t, can)
}

func TestSweepCompletesExpiredWithAttempts(t *testing.T) {
	past := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(
		testChapter("ch-done", models.ChapterUnlocked, &past),
		testChapter("ch-open", models.ChapterUnlocked, nil),
	)
	svc := newChapterService(repo, &mockAttemptChecker{withAttempts: map[string]bool{"ch-done": true}})
	svc.clock = sweepClock(past.Add(time.Hour))

	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))

	assert.Equal(t, models.ChapterCompleted, repo.chapters["ch-done"].Status)
	assert.Equal(t, models.ChapterUnlocked, repo.chapters["ch-open"].Status)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditChapterSweepComplete, repo.audits[0].Action)
}

func TestSweepFlagsExpiredWithoutAttempts(t *testing.T) {
	past := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(testChapter("ch-empty", models.ChapterUnlocked, &past))
	svc := newChapterService(repo, nil)
	svc.clock = sweepClock(past.Add(time.Hour))

	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))

	assert.Equal(t, models.ChapterUnlocked, repo.chapters["ch-empty"].Status)
	assert.True(t, repo.chapters["ch-empty"].NeedsAttention)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditChapterSweepAttention, repo.audits[0].Action)
}

func TestSweepIdempotent(t *testing.T) {
	past := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(
		testChapter("ch-done", models.ChapterUnlocked, &past),
		testChapter("ch-empty", models.ChapterUnlocked, &past),
	)
	svc := newChapterService(repo, &mockAttemptChecker{withAttempts: map[string]bool{"ch-done": true}})
	svc.clock = sweepClock(past.Add(time.Hour))

	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))
	first := len(repo.audits)
	assert.Equal(t, 2, first)

	// The second run finds nothing left to change: the completed chapter no
	// longer matches the guard, the flagged one is already flagged.
	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))
	assert.Equal(t, first, len(repo.audits))
}

func TestSweepSkipsFailingChapter(t *testing.T) {
	past := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(
		testChapter("ch-bad", models.ChapterUnlocked, &past),
		testChapter("ch-good", models.ChapterUnlocked, &past),
	)
	checker := &mockAttemptChecker{
		withAttempts: map[string]bool{"ch-good": true},
		failing:      map[string]bool{"ch-bad": true},
	}
	svc := newChapterService(repo, checker)
	svc.clock = sweepClock(past.Add(time.Hour))

	// One chapter failing its lookup does not abandon the rest of the run.
	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))
	assert.Equal(t, models.ChapterCompleted, repo.chapters["ch-good"].Status)
	assert.Equal(t, models.ChapterUnlocked, repo.chapters["ch-bad"].Status)

	// Once the store recovers the skipped chapter completes on the next run.
	checker.failing = nil
	checker.withAttempts["ch-bad"] = true
	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))
	assert.Equal(t, models.ChapterCompleted, repo.chapters["ch-bad"].Status)
}

func TestSweepNotBeforeDeadline(t *testing.T) {
	future := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockChapterRepo(testChapter("ch-1", models.ChapterUnlocked, &future))
	svc := newChapterService(repo, &mockAttemptChecker{withAttempts: map[string]bool{"ch-1": true}})
	svc.clock = sweepClock(future.Add(-time.Minute))

	require.NoError(t, svc.RunSweep(context.Background(), jobs.Job{}))
	assert.Equal(t, models.ChapterUnlocked, repo.chapters["ch-1"].Status)
	assert.Empty(t, repo.audits)
}
