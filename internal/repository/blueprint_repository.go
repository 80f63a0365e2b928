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

// BlueprintRepository handles exam template persistence.
type BlueprintRepository struct {
	db *sqlx.DB
}

// NewBlueprintRepository creates a new blueprint repository.
func NewBlueprintRepository(db *sqlx.DB) *BlueprintRepository {
	return &BlueprintRepository{db: db}
}

const blueprintColumns = `id, school_id, name, subject, grade, total_marks, sections, status, creator_id, approver_id, created_at, updated_at`

// Create inserts a pending blueprint.
func (r *BlueprintRepository) Create(ctx context.Context, b *models.Blueprint) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	const query = `INSERT INTO blueprints (id, school_id, name, subject, grade, total_marks, sections, status, creator_id, created_at, updated_at)
        VALUES (:id, :school_id, :name, :subject, :grade, :total_marks, :sections, :status, :creator_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("insert blueprint: %w", err)
	}
	return nil
}

// FindByID returns a single blueprint.
func (r *BlueprintRepository) FindByID(ctx context.Context, id string) (*models.Blueprint, error) {
	query := fmt.Sprintf("SELECT %s FROM blueprints WHERE id = $1", blueprintColumns)
	var b models.Blueprint
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns blueprints matching the filter plus a total count.
func (r *BlueprintRepository) List(ctx context.Context, filter models.BlueprintFilter) ([]models.Blueprint, int, error) {
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

	query := fmt.Sprintf("SELECT %s FROM blueprints%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		blueprintColumns, where, pageSize, (page-1)*pageSize)
	var blueprints []models.Blueprint
	if err := r.db.SelectContext(ctx, &blueprints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list blueprints: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM blueprints"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count blueprints: %w", err)
	}
	return blueprints, total, nil
}

// Approve flips a pending blueprint to approved and appends the audit row in
// the same transaction. Approval is one-way and terminal.
func (r *BlueprintRepository) Approve(ctx context.Context, id, approverID string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin blueprint approve: %w", err)
	}

	const query = `UPDATE blueprints
        SET status = 'approved', approver_id = $1, updated_at = $2
        WHERE id = $3 AND status = 'pending'`
	result, err := tx.ExecContext(ctx, query, approverID, time.Now().UTC(), id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("approve blueprint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("approve blueprint rows: %w", err)
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
		return fmt.Errorf("commit blueprint approve: %w", err)
	}
	return nil
}
