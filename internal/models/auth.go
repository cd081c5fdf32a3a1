package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the staff role carried by access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleTeacher UserRole = "teacher"
)

// Valid reports whether r is a known staff role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeacher:
		return true
	}
	return false
}

// JWTClaims is the access token payload issued by the identity service.
// TeacherID links a teacher account to the lessons it teaches.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}
