package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

var _ repository.PendingRegistrationStore = (*DB)(nil)

// SavePending stores the entry under its session id, replacing any earlier
// submission from the same session.
func (db *DB) SavePending(ctx context.Context, pending *model.PendingRegistration) error {
	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO pending_registrations (session_id, email, name, password_hash, role, code, expires_at)
		 VALUES (:session_id, :email, :name, :password_hash, :role, :code, :expires_at)
		 ON CONFLICT(session_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			password_hash = excluded.password_hash,
			role = excluded.role,
			code = excluded.code,
			expires_at = excluded.expires_at`,
		pending,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving pending registration: %w", err)
	}
	return nil
}

// GetPending returns the entry for the session. Expired entries are removed
// on read and reported as not found.
func (db *DB) GetPending(ctx context.Context, sessionID string) (*model.PendingRegistration, error) {
	var pending model.PendingRegistration
	err := db.conn.GetContext(ctx, &pending,
		`SELECT session_id, email, name, password_hash, role, code, expires_at
		 FROM pending_registrations WHERE session_id = ?`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("pending registration", sessionID)
		}
		return nil, fmt.Errorf("sqlite: getting pending registration: %w", err)
	}

	if pending.Expired(db.now()) {
		if err := db.DeletePending(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("pending registration", sessionID)
	}
	return &pending, nil
}

// DeletePending is a no-op for unknown sessions.
func (db *DB) DeletePending(ctx context.Context, sessionID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM pending_registrations WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting pending registration: %w", err)
	}
	return nil
}
