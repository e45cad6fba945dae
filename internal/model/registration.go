package model

import "time"

// PendingRegistration holds a submitted registration until its one-time
// code is verified or it expires. PasswordHash is already hashed; the
// plaintext password is never stored.
type PendingRegistration struct {
	SessionID    string    `json:"sessionId"    db:"session_id"`
	Email        string    `json:"email"        db:"email"`
	Name         string    `json:"name"         db:"name"`
	PasswordHash string    `json:"passwordHash" db:"password_hash"`
	Role         Role      `json:"role"         db:"role"`
	Code         string    `json:"code"         db:"code"`
	ExpiresAt    time.Time `json:"expiresAt"    db:"expires_at"`
}

func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
