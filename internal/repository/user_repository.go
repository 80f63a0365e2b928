package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
)

// UserRepository handles user account reads for authentication and
// analytics display.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.school_id, u.email, u.password_hash, u.full_name, u.role, u.wing_id, u.subjects, u.grade, u.section, u.active, u.last_login, u.created_at, u.updated_at`

// FindByEmailAndSchoolCode returns the user matching email within the tenant
// identified by its school code.
func (r *UserRepository) FindByEmailAndSchoolCode(ctx context.Context, email, schoolCode string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u
        JOIN schools s ON s.id = u.school_id
        WHERE LOWER(u.email) = LOWER($1) AND s.code = $2`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email, schoolCode); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a single user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users u WHERE u.id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the most recent successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, ts.UTC(), id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CountStudents returns the number of active students in a school.
func (r *UserRepository) CountStudents(ctx context.Context, schoolID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM users WHERE school_id = $1 AND role = 'student' AND active = TRUE`
	if err := r.db.GetContext(ctx, &count, query, schoolID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// StudentRefs returns display fields for the given student ids.
func (r *UserRepository) StudentRefs(ctx context.Context, ids []string) (map[string]models.StudentRef, error) {
	if len(ids) == 0 {
		return map[string]models.StudentRef{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, full_name, COALESCE(grade, 0) AS grade FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build student refs query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch student refs: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.StudentRef, len(ids))
	for rows.Next() {
		var ref models.StudentRef
		if err := rows.StructScan(&ref); err != nil {
			return nil, fmt.Errorf("scan student ref: %w", err)
		}
		result[ref.ID] = ref
	}
	return result, nil
}
