package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// QuestionRepository handles question bank persistence.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new question repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, school_id, subject, chapter_id, grade, content, type, marks, difficulty, status, creator_id, reviewer_id, review_comment, created_at, updated_at`

// Create inserts a new question draft.
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	const query = `INSERT INTO questions (id, school_id, subject, chapter_id, grade, content, type, marks, difficulty, status, creator_id, created_at, updated_at)
        VALUES (:id, :school_id, :subject, :chapter_id, :grade, :content, :type, :marks, :difficulty, :status, :creator_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, q); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// FindByID returns a single question.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE id = $1", questionColumns)
	var q models.Question
	if err := r.db.GetContext(ctx, &q, query, id); err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns questions matching the filter plus a total count.
func (r *QuestionRepository) List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error) {
	where := " WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.Subject != "" {
		where += fmt.Sprintf(" AND subject = $%d", len(args)+1)
		args = append(args, filter.Subject)
	}
	if filter.ChapterID != "" {
		where += fmt.Sprintf(" AND chapter_id = $%d", len(args)+1)
		args = append(args, filter.ChapterID)
	}
	if filter.Grade > 0 {
		where += fmt.Sprintf(" AND grade = $%d", len(args)+1)
		args = append(args, filter.Grade)
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.CreatorID != "" {
		where += fmt.Sprintf(" AND creator_id = $%d", len(args)+1)
		args = append(args, filter.CreatorID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM questions%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		questionColumns, where, pageSize, (page-1)*pageSize)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM questions" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}
	return questions, total, nil
}

// UpdateDraft rewrites the editable fields of a draft or rejected question.
func (r *QuestionRepository) UpdateDraft(ctx context.Context, q *models.Question) error {
	q.UpdatedAt = time.Now().UTC()
	const query = `UPDATE questions
        SET subject = :subject, chapter_id = :chapter_id, grade = :grade, content = :content,
            type = :type, marks = :marks, difficulty = :difficulty, updated_at = :updated_at
        WHERE id = :id AND status IN ('draft', 'rejected')`
	result, err := r.db.NamedExecContext(ctx, query, q)
	if err != nil {
		return fmt.Errorf("update question draft: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update question draft rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrInvalidTransition
	}
	return nil
}

// Transition moves a question from one lifecycle state to another and
// appends the audit record in the same transaction. A zero-row update means
// the expected state was not current (concurrent writer won) and surfaces as
// ErrInvalidTransition.
func (r *QuestionRepository) Transition(ctx context.Context, id string, from, to models.QuestionStatus, reviewerID, comment *string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question transition: %w", err)
	}

	const query = `UPDATE questions
        SET status = $1,
            reviewer_id = COALESCE($2, reviewer_id),
            review_comment = COALESCE($3, review_comment),
            updated_at = $4
        WHERE id = $5 AND status = $6`
	result, err := tx.ExecContext(ctx, query, to, reviewerID, comment, time.Now().UTC(), id, from)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition question: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition question rows: %w", err)
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
		return fmt.Errorf("commit question transition: %w", err)
	}
	return nil
}

// PickApproved returns up to limit approved question ids matching a
// blueprint section's criteria, randomly ordered.
func (r *QuestionRepository) PickApproved(ctx context.Context, schoolID, subject string, grade int, qtype models.QuestionType, marks int, chapterID *string, difficulty *models.Difficulty, limit int) ([]string, error) {
	query := `SELECT id FROM questions
        WHERE school_id = $1 AND subject = $2 AND grade = $3 AND type = $4 AND marks = $5 AND status = 'approved'`
	args := []interface{}{schoolID, subject, grade, qtype, marks}
	if chapterID != nil {
		query += fmt.Sprintf(" AND chapter_id = $%d", len(args)+1)
		args = append(args, *chapterID)
	}
	if difficulty != nil {
		query += fmt.Sprintf(" AND difficulty = $%d", len(args)+1)
		args = append(args, *difficulty)
	}
	query += fmt.Sprintf(" ORDER BY random() LIMIT %d", limit)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("pick approved questions: %w", err)
	}
	return ids, nil
}

// StatusesByIDs returns the current status of each listed question.
func (r *QuestionRepository) StatusesByIDs(ctx context.Context, ids []string) (map[string]models.QuestionStatus, error) {
	if len(ids) == 0 {
		return map[string]models.QuestionStatus{}, nil
	}
	query, args, err := sqlx.In("SELECT id, status FROM questions WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build status query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch question statuses: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.QuestionStatus, len(ids))
	for rows.Next() {
		var (
			id     string
			status models.QuestionStatus
		)
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan question status: %w", err)
		}
		result[id] = status
	}
	return result, nil
}
