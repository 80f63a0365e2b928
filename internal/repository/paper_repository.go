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

// PaperRepository handles generated paper persistence.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository creates a new paper repository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

const paperColumns = `id, school_id, blueprint_id, subject, grade, question_ids, status, generator_id, locked, copies, printed, delivered, return_reason, created_at, updated_at`

// Create inserts a freshly generated draft paper and its audit record in one
// transaction.
func (r *PaperRepository) Create(ctx context.Context, p *models.Paper, audit *models.AuditLog) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin paper create: %w", err)
	}

	const query = `INSERT INTO papers (id, school_id, blueprint_id, subject, grade, question_ids, status, generator_id, locked, copies, printed, delivered, created_at, updated_at)
        VALUES (:id, :school_id, :blueprint_id, :subject, :grade, :question_ids, :status, :generator_id, :locked, :copies, :printed, :delivered, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert paper: %w", err)
	}

	if err := InsertAuditTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit paper create: %w", err)
	}
	return nil
}

// FindByID returns a single paper.
func (r *PaperRepository) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	query := fmt.Sprintf("SELECT %s FROM papers WHERE id = $1", paperColumns)
	var p models.Paper
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns papers matching the filter plus a total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
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

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM papers%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		paperColumns, where, pageSize, (page-1)*pageSize)
	var papers []models.Paper
	if err := r.db.SelectContext(ctx, &papers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM papers"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}
	return papers, total, nil
}

// Transition performs the atomic check-and-set for one workflow step and
// appends the audit record in the same transaction. The locked flag and
// return reason ride along so lock/unlock/send-back commit with the status
// write. Zero rows affected means a concurrent writer advanced the paper
// first, surfaced as ErrInvalidTransition.
func (r *PaperRepository) Transition(ctx context.Context, id string, from, to models.PaperStatus, locked bool, returnReason *string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin paper transition: %w", err)
	}

	const query = `UPDATE papers
        SET status = $1, locked = $2, return_reason = COALESCE($3, return_reason), updated_at = $4
        WHERE id = $5 AND status = $6`
	result, err := tx.ExecContext(ctx, query, to, locked, returnReason, time.Now().UTC(), id, from)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition paper: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition paper rows: %w", err)
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
		return fmt.Errorf("commit paper transition: %w", err)
	}
	return nil
}

// UpdatePrintMeta changes print/delivery metadata only. It is the one write
// permitted on locked and printed papers.
func (r *PaperRepository) UpdatePrintMeta(ctx context.Context, id string, copies int, printed, delivered bool, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin print meta update: %w", err)
	}

	const query = `UPDATE papers
        SET copies = $1, printed = $2, delivered = $3, updated_at = $4
        WHERE id = $5`
	result, err := tx.ExecContext(ctx, query, copies, printed, delivered, time.Now().UTC(), id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update print meta: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update print meta rows: %w", err)
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
		return fmt.Errorf("commit print meta update: %w", err)
	}
	return nil
}
