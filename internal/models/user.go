package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole enumerates every role the platform recognises. Workflow
// authority and scope resolution both dispatch on this type; there is no
// open-ended permission system behind it.
type UserRole string

const (
	RoleTeacher       UserRole = "teacher"
	RoleHOD           UserRole = "hod"
	RolePrincipal     UserRole = "principal"
	RoleExamCommittee UserRole = "exam_committee"
	RoleAdmin         UserRole = "admin"
	RoleSuperAdmin    UserRole = "super_admin"
	RoleStudent       UserRole = "student"
	RoleParent        UserRole = "parent"
)

// User represents an application user stored in the users table.
// Wing and subject assignments drive scope resolution for teachers and
// heads of department; grade and section scope students.
type User struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"school_id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Role         UserRole       `db:"role" json:"role"`
	WingID       *string        `db:"wing_id" json:"wing_id,omitempty"`
	Subjects     pq.StringArray `db:"subjects" json:"subjects,omitempty"`
	Grade        *int           `db:"grade" json:"grade,omitempty"`
	Section      *string        `db:"section" json:"section,omitempty"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasSubject reports whether the user is assigned the given subject.
func (u *User) HasSubject(subject string) bool {
	for _, s := range u.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
