package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

var _ repository.PurchaseRepository = (*DB)(nil)

const purchaseColumns = `id, student_id, teacher_id, course_id, provider_ref, transaction_id, created_at, purchased_at`

// CreatePurchase inserts a pending purchase. The caller may pre-assign
// purchase.ID (it is embedded in the payment session before the row
// exists); otherwise one is generated.
func (db *DB) CreatePurchase(ctx context.Context, purchase *model.Purchase) error {
	if purchase.ID == "" {
		purchase.ID = xid.New().String()
	}
	purchase.CreatedAt = db.now()

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO purchases (`+purchaseColumns+`)
		 VALUES (:id, :student_id, :teacher_id, :course_id, :provider_ref, :transaction_id, :created_at, :purchased_at)`,
		purchase,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("purchase of course %s already exists", purchase.CourseID))
		}
		return fmt.Errorf("sqlite: creating purchase: %w", err)
	}
	return nil
}

func (db *DB) FindPurchase(ctx context.Context, studentID, courseID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := db.conn.GetContext(ctx, &purchase,
		`SELECT `+purchaseColumns+` FROM purchases WHERE student_id = ? AND course_id = ?`,
		studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("purchase", courseID)
		}
		return nil, fmt.Errorf("sqlite: finding purchase: %w", err)
	}
	return &purchase, nil
}

func (db *DB) ListPurchasesByStudent(ctx context.Context, studentID string) ([]model.Purchase, error) {
	purchases := []model.Purchase{}
	err := db.conn.SelectContext(ctx, &purchases,
		`SELECT `+purchaseColumns+` FROM purchases WHERE student_id = ?
		 ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing purchases for student %s: %w", studentID, err)
	}
	return purchases, nil
}

// ConfirmPurchase stamps a single pending row. Already confirmed rows are
// left alone, so a replayed callback cannot overwrite a transaction id.
func (db *DB) ConfirmPurchase(ctx context.Context, purchaseID, transactionID string, at time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE purchases SET transaction_id = ?, purchased_at = ?
		 WHERE id = ? AND transaction_id IS NULL`,
		transactionID, at, purchaseID)
	if err != nil {
		return false, fmt.Errorf("sqlite: confirming purchase %s: %w", purchaseID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (db *DB) ConfirmPendingForCourse(ctx context.Context, courseID, transactionID string, at time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE purchases SET transaction_id = ?, purchased_at = ?
		 WHERE course_id = ? AND transaction_id IS NULL`,
		transactionID, at, courseID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: confirming purchases for course %s: %w", courseID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (db *DB) StudentNamesForCourse(ctx context.Context, courseID string) ([]string, error) {
	names := []string{}
	err := db.conn.SelectContext(ctx, &names,
		`SELECT s.name FROM purchases p
		 JOIN student_profiles s ON s.id = p.student_id
		 WHERE p.course_id = ?
		 ORDER BY p.created_at, p.id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing students of course %s: %w", courseID, err)
	}
	return names, nil
}

func (db *DB) StudentEmailsForCourse(ctx context.Context, courseID string) ([]string, error) {
	emails := []string{}
	err := db.conn.SelectContext(ctx, &emails,
		`SELECT DISTINCT s.email FROM purchases p
		 JOIN student_profiles s ON s.id = p.student_id
		 WHERE p.course_id = ?
		 ORDER BY s.email`, courseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing purchaser emails of course %s: %w", courseID, err)
	}
	return emails, nil
}

func (db *DB) StudentEmailsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	emails := []string{}
	err := db.conn.SelectContext(ctx, &emails,
		`SELECT DISTINCT s.email FROM purchases p
		 JOIN student_profiles s ON s.id = p.student_id
		 WHERE p.teacher_id = ?
		 ORDER BY s.email`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing purchaser emails of teacher %s: %w", teacherID, err)
	}
	return emails, nil
}
