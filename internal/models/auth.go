package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in access tokens.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Teacher owns classrooms and reviews student requests.
type Teacher struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// JWTClaims is the access token payload for both roles. StudentID and
// ClassroomID are empty for teacher tokens.
type JWTClaims struct {
	Role        string `json:"role"`
	TeacherID   string `json:"teacher_id,omitempty"`
	StudentID   string `json:"student_id,omitempty"`
	ClassroomID string `json:"classroom_id,omitempty"`
	Name        string `json:"name"`
	jwt.RegisteredClaims
}

// LoginResponse carries a fresh token pair plus the authenticated principal.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Principal interface{} `json:"principal"`
}
