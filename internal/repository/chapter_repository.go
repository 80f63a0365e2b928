package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// ChapterRepository handles chapter access-state persistence.
type ChapterRepository struct {
	db *sqlx.DB
}

// NewChapterRepository creates a new chapter repository.
func NewChapterRepository(db *sqlx.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

const chapterColumns = `id, school_id, subject, grade, name, order_index, status, deadline, scores_revealed, needs_attention, created_at, updated_at`

// FindByID returns a single chapter.
func (r *ChapterRepository) FindByID(ctx context.Context, id string) (*models.Chapter, error) {
	query := fmt.Sprintf("SELECT %s FROM chapters WHERE id = $1", chapterColumns)
	var c models.Chapter
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns chapters matching the filter ordered by their position within
// the (subject, grade) sequence.
func (r *ChapterRepository) List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error) {
	where := " WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.Subject != "" {
		where += fmt.Sprintf(" AND subject = $%d", len(args)+1)
		args = append(args, filter.Subject)
	}
	if filter.Grade > 0 {
		where += fmt.Sprintf(" AND grade = $%d", len(args)+1)
		args = append(args, filter.Grade)
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf("SELECT %s FROM chapters%s ORDER BY subject, grade, order_index ASC", chapterColumns, where)
	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, query, args...); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// Transition moves a chapter between access states with the audit record in
// the same transaction.
func (r *ChapterRepository) Transition(ctx context.Context, id string, from, to models.ChapterStatus, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chapter transition: %w", err)
	}

	const query = `UPDATE chapters SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := tx.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition chapter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition chapter rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return appErrors.ErrInvalidTransition
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chapter transition: %w", err)
	}
	return nil
}

// SetDeadline writes the chapter deadline. Deadlines are independent of the
// access state but may only change while the chapter is locked or unlocked.
func (r *ChapterRepository) SetDeadline(ctx context.Context, id string, deadline time.Time, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deadline update: %w", err)
	}

	const query = `UPDATE chapters SET deadline = $1, updated_at = $2
        WHERE id = $3 AND status IN ('locked', 'unlocked')`
	result, err := tx.ExecContext(ctx, query, deadline.UTC(), time.Now().UTC(), id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("set chapter deadline: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("set chapter deadline rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return appErrors.ErrInvalidTransition
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deadline update: %w", err)
	}
	return nil
}

// SetScoresRevealed toggles score visibility for a chapter.
func (r *ChapterRepository) SetScoresRevealed(ctx context.Context, id string, revealed bool, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reveal update: %w", err)
	}

	const query = `UPDATE chapters SET scores_revealed = $1, updated_at = $2 WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, revealed, time.Now().UTC(), id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("set scores revealed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("set scores revealed rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return appErrors.ErrNotFound
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reveal update: %w", err)
	}
	return nil
}

// ListDeadlineExpired returns unlocked chapters whose deadline has passed.
// The sweep iterates these; the actual completion is a separate conditional
// write so concurrent sweeps stay safe.
func (r *ChapterRepository) ListDeadlineExpired(ctx context.Context, now time.Time) ([]models.Chapter, error) {
	query := fmt.Sprintf(`SELECT %s FROM chapters
        WHERE status = 'unlocked' AND deadline IS NOT NULL AND deadline < $1
        ORDER BY deadline ASC`, chapterColumns)
	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("list expired chapters: %w", err)
	}
	return chapters, nil
}

// CompleteExpired transitions one expired chapter to completed iff it is
// still unlocked, past deadline, and has at least one attempt. It returns
// false without error when the guard no longer matches, which makes the
// sweep idempotent: a second run on a completed chapter writes nothing.
func (r *ChapterRepository) CompleteExpired(ctx context.Context, id string, now time.Time, audit *models.AuditLog) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin sweep completion: %w", err)
	}

	const query = `UPDATE chapters SET status = 'completed', needs_attention = FALSE, updated_at = $1
        WHERE id = $2 AND status = 'unlocked' AND deadline IS NOT NULL AND deadline < $3
          AND EXISTS (SELECT 1 FROM attempts WHERE attempts.chapter_id = chapters.id)`
	result, err := tx.ExecContext(ctx, query, time.Now().UTC(), id, now.UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("complete chapter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("complete chapter rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit sweep completion: %w", err)
	}
	return true, nil
}

// MarkNeedsAttention flags an expired chapter that has no attempts so the
// HOD can decide instead of the sweep silently closing an empty test. The
// conditional write keeps repeated sweeps from re-flagging.
func (r *ChapterRepository) MarkNeedsAttention(ctx context.Context, id string, audit *models.AuditLog) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin attention flag: %w", err)
	}

	const query = `UPDATE chapters SET needs_attention = TRUE, updated_at = $1
        WHERE id = $2 AND status = 'unlocked' AND needs_attention = FALSE`
	result, err := tx.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("flag chapter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("flag chapter rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit attention flag: %w", err)
	}
	return true, nil
}
