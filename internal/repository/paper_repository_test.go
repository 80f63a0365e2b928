package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

func paperAudit(action string) *models.AuditLog {
	actor := "ec-1"
	return &models.AuditLog{
		SchoolID:   "school-1",
		ActorID:    &actor,
		Action:     action,
		Resource:   "paper",
		ResourceID: "p-1",
		Detail:     "test",
	}
}

func TestPaperRepositoryTransitionLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE papers")).
		WithArgs(models.PaperLocked, true, nil, sqlmock.AnyArg(), "p-1", models.PaperApprovedForPrint).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), "p-1",
		models.PaperApprovedForPrint, models.PaperLocked, true, nil, paperAudit(models.AuditPaperLock))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperRepositoryTransitionLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE papers")).
		WithArgs(models.PaperSentForReview, false, nil, sqlmock.AnyArg(), "p-1", models.PaperDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), "p-1",
		models.PaperDraft, models.PaperSentForReview, false, nil, paperAudit(models.AuditPaperAdvance))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperRepositoryTransitionSendBackStoresReason(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	reason := "needs rebalancing"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE papers")).
		WithArgs(models.PaperDraft, false, "needs rebalancing", sqlmock.AnyArg(), "p-1", models.PaperSentToCommittee).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), "p-1",
		models.PaperSentToCommittee, models.PaperDraft, false, &reason, paperAudit(models.AuditPaperSentBack))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperRepositoryUpdatePrintMetaMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE papers")).
		WithArgs(200, true, false, sqlmock.AnyArg(), "p-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdatePrintMeta(context.Background(), "p-missing", 200, true, false, paperAudit(models.AuditPaperPrintMeta))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
