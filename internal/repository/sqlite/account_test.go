package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
)

// =========================================================================
// CREATE ACCOUNT
// =========================================================================

func TestCreateAccount_Student(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := &model.Account{Email: "A@X.com", Name: "Alice", PasswordHash: "hash", IsStudent: true}
	require.NoError(t, db.CreateAccount(ctx, account))

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "a@x.com", account.Email)

	profile, err := db.GetStudentProfile(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "a@x.com", profile.Email)

	_, err = db.GetTeacherProfile(ctx, account.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	stored, err := db.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsStudent)
	assert.False(t, stored.IsTeacher)
	assert.Equal(t, model.RoleStudent, stored.Role())
}

func TestCreateAccount_Teacher(t *testing.T) {
	db := newTestDB(t)
	account, profile := createTestTeacher(t, db, "t@x.com", "Tom")

	assert.Equal(t, account.ID, profile.AccountID)

	_, err := db.GetStudentProfile(context.Background(), account.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateAccount_DuplicateEmailLeavesNoRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestStudent(t, db, "a@x.com", "Alice")

	dup := &model.Account{Email: "a@X.COM", Name: "Other", PasswordHash: "hash", IsTeacher: true}
	err := db.CreateAccount(ctx, dup)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	var teachers int
	require.NoError(t, db.conn.Get(&teachers, `SELECT COUNT(*) FROM teacher_profiles`))
	assert.Equal(t, 0, teachers)

	var accounts int
	require.NoError(t, db.conn.Get(&accounts, `SELECT COUNT(*) FROM accounts`))
	assert.Equal(t, 1, accounts)
}

func TestCreateAccount_RejectsBothRoles(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateAccount(context.Background(),
		&model.Account{Email: "b@x.com", Name: "Both", PasswordHash: "h", IsStudent: true, IsTeacher: true})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestCreateAccount_RejectsNoRole(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateAccount(context.Background(),
		&model.Account{Email: "n@x.com", Name: "None", PasswordHash: "h"})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

// =========================================================================
// LOOKUPS
// =========================================================================

func TestGetAccountByEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created, _ := createTestStudent(t, db, "a@x.com", "Alice")

	got, err := db.GetAccountByEmail(ctx, "  A@x.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = db.GetAccountByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEmailExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestStudent(t, db, "a@x.com", "Alice")

	exists, err := db.EmailExists(ctx, "A@X.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.EmailExists(ctx, "b@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetAccountByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetAccountByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
