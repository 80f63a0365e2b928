package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func questionAudit() *models.AuditLog {
	actor := "hod-1"
	return &models.AuditLog{
		SchoolID:   "school-1",
		ActorID:    &actor,
		Action:     models.AuditQuestionApprove,
		Resource:   "question",
		ResourceID: "q-1",
		Detail:     "approved",
	}
}

func TestQuestionRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	reviewer := "hod-1"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WithArgs(models.QuestionApproved, "hod-1", nil, sqlmock.AnyArg(), "q-1", models.QuestionPendingReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), "school-1", "hod-1", models.AuditQuestionApprove, "question", "q-1", "approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), "q-1",
		models.QuestionPendingReview, models.QuestionApproved, &reviewer, nil, questionAudit())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryTransitionStaleState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	reviewer := "hod-1"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WithArgs(models.QuestionApproved, "hod-1", nil, sqlmock.AnyArg(), "q-1", models.QuestionPendingReview).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), "q-1",
		models.QuestionPendingReview, models.QuestionApproved, &reviewer, nil, questionAudit())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryUpdateDraftOnApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDraft(context.Background(), &models.Question{ID: "q-1", Subject: "Mathematics"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryPickApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("q-1").AddRow("q-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM questions")).
		WithArgs("school-1", "Mathematics", 7, models.QuestionTypeMCQ, 1).
		WillReturnRows(rows)

	ids, err := repo.PickApproved(context.Background(), "school-1", "Mathematics", 7,
		models.QuestionTypeMCQ, 1, nil, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"q-1", "q-2"}, ids)
}

func TestQuestionRepositoryStatusesByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow("q-1", "approved").
		AddRow("q-2", "rejected")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM questions WHERE id IN ($1, $2)")).
		WithArgs("q-1", "q-2").
		WillReturnRows(rows)

	statuses, err := repo.StatusesByIDs(context.Background(), []string{"q-1", "q-2"})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionApproved, statuses["q-1"])
	assert.Equal(t, models.QuestionRejected, statuses["q-2"])
	require.NoError(t, mock.ExpectationsWereMet())
}
