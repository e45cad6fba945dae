package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

var _ repository.AccountRepository = (*DB)(nil)

// CreateAccount inserts the account and its role profile in one transaction.
//
// An account without a profile must never exist, so both inserts share the
// transaction. The UNIQUE index on accounts.email settles races between two
// verifications of the same address: the loser gets ErrConflict and nothing
// it wrote survives.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	role := account.Role()
	if account.IsStudent && account.IsTeacher {
		return apperror.InvalidState("account cannot be both student and teacher")
	}
	if role == "" {
		return apperror.InvalidState("account has no role")
	}

	account.ID = xid.New().String()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = db.now()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, email, name, password_hash, is_student, is_teacher, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			account.ID,
			account.Email,
			account.Name,
			account.PasswordHash,
			account.IsStudent,
			account.IsTeacher,
			account.CreatedAt,
		)
		if err != nil {
			return err
		}

		table := "student_profiles"
		if role == model.RoleTeacher {
			table = "teacher_profiles"
		}
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, account_id, email, name) VALUES (?, ?, ?, ?)`, table),
			xid.New().String(),
			account.ID,
			account.Email,
			account.Name,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("account with email %s already exists", account.Email))
		}
		return fmt.Errorf("sqlite: creating account %s: %w", account.Email, err)
	}

	return nil
}

func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := db.conn.GetContext(ctx, &account,
		`SELECT id, email, name, password_hash, is_student, is_teacher, created_at
		 FROM accounts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return &account, nil
}

func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account model.Account
	err := db.conn.GetContext(ctx, &account,
		`SELECT id, email, name, password_hash, is_student, is_teacher, created_at
		 FROM accounts WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return &account, nil
}

func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := db.conn.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email: %w", err)
	}
	return count > 0, nil
}

func (db *DB) GetStudentProfile(ctx context.Context, accountID string) (*model.StudentProfile, error) {
	var profile model.StudentProfile
	err := db.conn.GetContext(ctx, &profile,
		`SELECT id, account_id, email, name FROM student_profiles WHERE account_id = ?`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("student profile", accountID)
		}
		return nil, fmt.Errorf("sqlite: getting student profile %s: %w", accountID, err)
	}
	return &profile, nil
}

func (db *DB) GetTeacherProfile(ctx context.Context, accountID string) (*model.TeacherProfile, error) {
	var profile model.TeacherProfile
	err := db.conn.GetContext(ctx, &profile,
		`SELECT id, account_id, email, name FROM teacher_profiles WHERE account_id = ?`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("teacher profile", accountID)
		}
		return nil, fmt.Errorf("sqlite: getting teacher profile %s: %w", accountID, err)
	}
	return &profile, nil
}
