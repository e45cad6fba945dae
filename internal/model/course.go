package model

import "time"

// Course is owned by exactly one teacher. TeacherID never changes after
// creation.
type Course struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Duration    string    `json:"duration"    db:"duration"`
	Price       Money     `json:"price"       db:"price_cents"`
	TeacherID   string    `json:"teacherId"   db:"teacher_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// CourseContent is a single topic of a course.
type CourseContent struct {
	ID        string    `json:"id"        db:"id"`
	CourseID  string    `json:"courseId"  db:"course_id"`
	Name      string    `json:"name"      db:"name"`
	Body      string    `json:"body"      db:"body"`
	URL       string    `json:"url"       db:"url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TeacherCourse is a course as its owner sees it, with the names of the
// students who bought it.
type TeacherCourse struct {
	Course
	StudentNames []string `json:"studentNames"`
}

// PurchasedCourse is one entry of a student's entitlement list.
type PurchasedCourse struct {
	CourseID   string          `json:"courseId"`
	CourseName string          `json:"courseName"`
	Status     PurchaseStatus  `json:"status"`
	Contents   []CourseContent `json:"contents"`
}
