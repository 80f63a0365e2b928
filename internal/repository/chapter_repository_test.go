package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

func chapterAudit(action string) *models.AuditLog {
	return &models.AuditLog{
		SchoolID:   "school-1",
		Action:     action,
		Resource:   "chapter",
		ResourceID: "ch-1",
		Detail:     "test",
	}
}

func TestChapterRepositoryTransitionUnlock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChapterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters")).
		WithArgs(models.ChapterUnlocked, sqlmock.AnyArg(), "ch-1", models.ChapterLocked).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), "ch-1",
		models.ChapterLocked, models.ChapterUnlocked, chapterAudit(models.AuditChapterUnlock))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChapterRepositoryTransitionStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChapterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), "ch-1",
		models.ChapterLocked, models.ChapterUnlocked, chapterAudit(models.AuditChapterUnlock))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChapterRepositoryCompleteExpired(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChapterRepository(db)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters SET status = 'completed'")).
		WithArgs(sqlmock.AnyArg(), "ch-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.CompleteExpired(context.Background(), "ch-1", now, chapterAudit(models.AuditChapterSweepComplete))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChapterRepositoryCompleteExpiredAlreadyDone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChapterRepository(db)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Guard no longer matches; not an error, just nothing to do.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters SET status = 'completed'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	changed, err := repo.CompleteExpired(context.Background(), "ch-1", now, chapterAudit(models.AuditChapterSweepComplete))
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChapterRepositoryMarkNeedsAttentionOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChapterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters SET needs_attention = TRUE")).
		WithArgs(sqlmock.AnyArg(), "ch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.MarkNeedsAttention(context.Background(), "ch-1", chapterAudit(models.AuditChapterSweepAttention))
	require.NoError(t, err)
	assert.True(t, changed)

	// Second pass finds the flag already set.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chapters SET needs_attention = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	changed, err = repo.MarkNeedsAttention(context.Background(), "ch-1", chapterAudit(models.AuditChapterSweepAttention))
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
