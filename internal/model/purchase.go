package model

import "time"

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseConfirmed PurchaseStatus = "confirmed"
)

// Purchase links a student to a course. A nil TransactionID means the
// payment has not been confirmed by the provider yet.
//
// TeacherID is copied from the course at creation so teacher-side queries
// do not need a join.
type Purchase struct {
	ID            string     `json:"id"                    db:"id"`
	StudentID     string     `json:"studentId"             db:"student_id"`
	TeacherID     string     `json:"teacherId"             db:"teacher_id"`
	CourseID      string     `json:"courseId"              db:"course_id"`
	ProviderRef   string     `json:"providerRef,omitempty" db:"provider_ref"`
	TransactionID *string    `json:"transactionId"         db:"transaction_id"`
	CreatedAt     time.Time  `json:"createdAt"             db:"created_at"`
	PurchasedAt   *time.Time `json:"purchasedAt"           db:"purchased_at"`
}

func (p *Purchase) Status() PurchaseStatus {
	if p.TransactionID == nil {
		return PurchasePending
	}
	return PurchaseConfirmed
}
