// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the single role an account holds. An account is never both.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Account is the durable identity created when a registration is verified.
//
// IsStudent and IsTeacher mirror Role as two flags because that is how the
// accounts table stores them (with a CHECK that they are not both set).
// Use Role() rather than reading the flags directly.
type Account struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	IsStudent    bool      `json:"isStudent" db:"is_student"`
	IsTeacher    bool      `json:"isTeacher" db:"is_teacher"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Role returns the account role, or "" for an account with no role flag set.
func (a *Account) Role() Role {
	switch {
	case a.IsTeacher:
		return RoleTeacher
	case a.IsStudent:
		return RoleStudent
	default:
		return ""
	}
}

// StudentProfile exists iff the owning account is a student.
type StudentProfile struct {
	ID        string `json:"id"        db:"id"`
	AccountID string `json:"accountId" db:"account_id"`
	Email     string `json:"email"     db:"email"`
	Name      string `json:"name"      db:"name"`
}

// TeacherProfile exists iff the owning account is a teacher.
type TeacherProfile struct {
	ID        string `json:"id"        db:"id"`
	AccountID string `json:"accountId" db:"account_id"`
	Email     string `json:"email"     db:"email"`
	Name      string `json:"name"      db:"name"`
}
