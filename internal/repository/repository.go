// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages (sqlite, redisstore).
package repository

import (
	"context"
	"time"

	"github.com/sakif/coursemarket/internal/model"
)

type AccountRepository interface {
	// CreateAccount inserts the account and its matching role profile in a
	// single transaction. A duplicate email yields apperror.ErrConflict and
	// leaves no rows behind.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GetStudentProfile(ctx context.Context, accountID string) (*model.StudentProfile, error)
	GetTeacherProfile(ctx context.Context, accountID string) (*model.TeacherProfile, error)
}

type CourseFilter struct {
	TeacherID   string // empty = all teachers
	TitleSearch string // case-insensitive substring, empty = no filter
}

type CourseRepository interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	ListCourses(ctx context.Context, filter CourseFilter) ([]model.Course, error)
	UpdateCourse(ctx context.Context, course *model.Course) error
	DeleteCourse(ctx context.Context, id string) error
}

type ContentRepository interface {
	CreateContent(ctx context.Context, content *model.CourseContent) error
	GetContent(ctx context.Context, courseID, id string) (*model.CourseContent, error)
	ListContents(ctx context.Context, courseID string) ([]model.CourseContent, error)
	UpdateContent(ctx context.Context, content *model.CourseContent) error
	DeleteContent(ctx context.Context, courseID, id string) error
}

type PurchaseRepository interface {
	// CreatePurchase fails with apperror.ErrConflict when the student
	// already has a purchase row for the course.
	CreatePurchase(ctx context.Context, purchase *model.Purchase) error
	FindPurchase(ctx context.Context, studentID, courseID string) (*model.Purchase, error)
	ListPurchasesByStudent(ctx context.Context, studentID string) ([]model.Purchase, error)
	// ConfirmPurchase stamps one pending purchase and reports whether a row
	// was updated.
	ConfirmPurchase(ctx context.Context, purchaseID, transactionID string, at time.Time) (bool, error)
	// ConfirmPendingForCourse stamps every pending purchase of the course
	// and returns how many rows changed.
	ConfirmPendingForCourse(ctx context.Context, courseID, transactionID string, at time.Time) (int64, error)
	// StudentNamesForCourse lists the names of students with a purchase row.
	StudentNamesForCourse(ctx context.Context, courseID string) ([]string, error)
	// StudentEmailsForCourse lists purchaser emails of a single course.
	StudentEmailsForCourse(ctx context.Context, courseID string) ([]string, error)
	// StudentEmailsForTeacher lists distinct purchaser emails across all of
	// a teacher's courses.
	StudentEmailsForTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// PendingRegistrationStore is the short-lived holding area for submitted
// registrations. Entries past their expiry behave as if absent.
type PendingRegistrationStore interface {
	SavePending(ctx context.Context, pending *model.PendingRegistration) error
	GetPending(ctx context.Context, sessionID string) (*model.PendingRegistration, error)
	DeletePending(ctx context.Context, sessionID string) error
}
