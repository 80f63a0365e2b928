package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
)

const auditInsertQuery = `INSERT INTO audit_logs (id, school_id, actor_id, action, resource, resource_id, detail, created_at)
        VALUES (:id, :school_id, :actor_id, :action, :resource, :resource_id, :detail, :created_at)`

// AuditRepository appends and reads the audit trail. Workflow repositories
// insert audit rows through InsertAuditTx so the record commits atomically with
// the state change it describes.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit record outside any transaction.
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	prepareAudit(log)
	if _, err := r.db.NamedExecContext(ctx, auditInsertQuery, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// InsertAuditTx appends an audit record within the caller's transaction.
func InsertAuditTx(ctx context.Context, tx *sqlx.Tx, log *models.AuditLog) error {
	prepareAudit(log)
	if _, err := tx.NamedExecContext(ctx, auditInsertQuery, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByResource returns the audit trail for one entity, oldest first.
func (r *AuditRepository) ListByResource(ctx context.Context, schoolID, resource, resourceID string) ([]models.AuditLog, error) {
	const query = `SELECT id, school_id, actor_id, action, resource, resource_id, detail, created_at
        FROM audit_logs
        WHERE school_id = $1 AND resource = $2 AND resource_id = $3
        ORDER BY created_at ASC`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, schoolID, resource, resourceID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func prepareAudit(log *models.AuditLog) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
}
