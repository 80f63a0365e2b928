package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user. SchoolCode
// selects the tenant the way the client login form does.
type LoginRequest struct {
	SchoolCode string `json:"schoolCode" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"name"`
	Role     UserRole `json:"role"`
	SchoolID string   `json:"school_id"`
}

// JWTClaims is the access-token payload. It carries everything the scope
// resolver needs so authorisation does not re-read the user row per request.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	SchoolID string   `json:"school_id"`
	Role     UserRole `json:"role"`
	WingID   string   `json:"wing_id,omitempty"`
	Subjects []string `json:"subjects,omitempty"`
	Grade    int      `json:"grade,omitempty"`
	Section  string   `json:"section,omitempty"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// HasSubject reports whether the claims carry the given subject assignment.
func (c *JWTClaims) HasSubject(subject string) bool {
	for _, s := range c.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}
