package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
)

// WingRepository reads wing definitions for scope resolution.
type WingRepository struct {
	db *sqlx.DB
}

// NewWingRepository creates a new wing repository.
func NewWingRepository(db *sqlx.DB) *WingRepository {
	return &WingRepository{db: db}
}

// FindByID returns a single wing.
func (r *WingRepository) FindByID(ctx context.Context, id string) (*models.Wing, error) {
	const query = `SELECT id, school_id, name, min_grade, max_grade, created_at, updated_at FROM wings WHERE id = $1`
	var wing models.Wing
	if err := r.db.GetContext(ctx, &wing, query, id); err != nil {
		return nil, err
	}
	return &wing, nil
}

// ListBySchool returns all wings of a school ordered by grade range.
func (r *WingRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Wing, error) {
	const query = `SELECT id, school_id, name, min_grade, max_grade, created_at, updated_at
        FROM wings WHERE school_id = $1 ORDER BY min_grade ASC`
	var wings []models.Wing
	if err := r.db.SelectContext(ctx, &wings, query, schoolID); err != nil {
		return nil, fmt.Errorf("list wings: %w", err)
	}
	return wings, nil
}
