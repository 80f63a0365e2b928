package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
)

// AttemptRepository handles exam attempt persistence. Attempts are
// insert-only; nothing in the system updates a submitted attempt.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, school_id, student_id, chapter_id, paper_id, subject, grade, score, max_score, percentage, tab_switches, absence_flags, submitted_at`

// Create records a submitted attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *models.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attempts (id, school_id, student_id, chapter_id, paper_id, subject, grade, score, max_score, percentage, tab_switches, absence_flags, submitted_at)
        VALUES (:id, :school_id, :student_id, :chapter_id, :paper_id, :subject, :grade, :score, :max_score, :percentage, :tab_switches, :absence_flags, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListWindow returns attempts matching the filter, newest first.
func (r *AttemptRepository) ListWindow(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error) {
	where := " WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.StudentID != "" {
		where += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ChapterID != "" {
		where += fmt.Sprintf(" AND chapter_id = $%d", len(args)+1)
		args = append(args, filter.ChapterID)
	}
	if filter.Subject != "" {
		where += fmt.Sprintf(" AND subject = $%d", len(args)+1)
		args = append(args, filter.Subject)
	}
	if filter.Grade > 0 {
		where += fmt.Sprintf(" AND grade = $%d", len(args)+1)
		args = append(args, filter.Grade)
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND submitted_at >= $%d", len(args)+1)
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND submitted_at <= $%d", len(args)+1)
		args = append(args, filter.To.UTC())
	}

	query := fmt.Sprintf("SELECT %s FROM attempts%s ORDER BY submitted_at DESC", attemptColumns, where)
	var attempts []models.Attempt
	if err := r.db.SelectContext(ctx, &attempts, query, args...); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// ExistsForChapter reports whether any attempt has been recorded against the
// chapter.
func (r *AttemptRepository) ExistsForChapter(ctx context.Context, chapterID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM attempts WHERE chapter_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, chapterID); err != nil {
		return false, fmt.Errorf("check attempts: %w", err)
	}
	return exists, nil
}
