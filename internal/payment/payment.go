// Package payment talks to the external payment provider.
//
// The purchase flow is redirect based: CreateSession returns an approval
// URL the buyer is sent to; after approving, the provider redirects back to
// our success callback with the session id, and Execute finalizes it.
package payment

import (
	"context"
	"errors"

	"github.com/sakif/coursemarket/internal/model"
)

var (
	// ErrUnavailable means the provider could not be reached.
	ErrUnavailable = errors.New("payment: provider unavailable")
	// ErrSessionNotFound means the provider has no session with that id.
	ErrSessionNotFound = errors.New("payment: session not found")
	// ErrRejected means the provider answered but refused the request.
	ErrRejected = errors.New("payment: rejected by provider")
)

// Metadata travels with the provider session so the confirmation callback
// can find the purchase without any local session state.
type Metadata struct {
	CourseID   string
	PurchaseID string
}

type SessionRequest struct {
	Amount      model.Money
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
	Metadata    Metadata
}

type Session struct {
	ID          string
	Status      string
	ApprovalURL string
	PayerID     string
	Metadata    Metadata
	// TransactionID is set once the payment has been executed.
	TransactionID string
}

// Completed reports whether the provider has already captured the funds.
func (s *Session) Completed() bool {
	return s.Status == StatusCompleted
}

const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
)

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	FindSession(ctx context.Context, id string) (*Session, error)
	Execute(ctx context.Context, session *Session, payerID string) (*Session, error)
}

// Unconfigured is the provider used when no credentials are set. Every
// call fails with ErrUnavailable.
type Unconfigured struct{}

func (Unconfigured) CreateSession(context.Context, SessionRequest) (*Session, error) {
	return nil, ErrUnavailable
}

func (Unconfigured) FindSession(context.Context, string) (*Session, error) {
	return nil, ErrUnavailable
}

func (Unconfigured) Execute(context.Context, *Session, string) (*Session, error) {
	return nil, ErrUnavailable
}
