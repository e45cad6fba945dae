package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/mail"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

const (
	msgEmailRegistered = "Email is already registered. Please log in instead."
	msgInvalidOTP      = "Invalid OTP. Please try again."
	msgNoPending       = "Registration data not found. Please try registering again."
	msgOTPSendFailed   = "Failed to send OTP. Please try again later."

	otpSubject = "OTP Verification"
	otpDigits  = 6
)

// RegisterInput is the registration form. Exactly one of IsStudent and
// IsTeacher must be set.
type RegisterInput struct {
	Email           string `json:"email"            validate:"required,email,max=254"`
	Name            string `json:"name"             validate:"required,max=100,alphaspace"`
	Password        string `json:"password"         validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	IsStudent       bool   `json:"is_student"`
	IsTeacher       bool   `json:"is_teacher"`
}

type VerifyInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp"   validate:"required,max=16"`
}

// RegistrationService runs the two-step sign-up:
//
//	Submit: validate → park the registration with a one-time code → mail the code
//	Verify: match the code → create account + profile atomically → drop the entry
//
// Pending entries are keyed by a registration session id the HTTP layer
// keeps in a cookie, so Verify must come from the same client as Submit.
type RegistrationService struct {
	accounts  repository.AccountRepository
	pending   repository.PendingRegistrationStore
	passwords *auth.PasswordService
	mailer    mail.Mailer
	validator *Validator
	logger    *slog.Logger

	mailFrom string
	ttl      time.Duration
	now      func() time.Time
	newCode  func() (string, error)
}

func NewRegistrationService(
	accounts repository.AccountRepository,
	pending repository.PendingRegistrationStore,
	passwords *auth.PasswordService,
	mailer mail.Mailer,
	mailFrom string,
	ttl time.Duration,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts:  accounts,
		pending:   pending,
		passwords: passwords,
		mailer:    mailer,
		validator: NewValidator(),
		logger:    logger,
		mailFrom:  mailFrom,
		ttl:       ttl,
		now:       time.Now,
		newCode:   generateCode,
	}
}

// Submit validates a registration and mails a one-time code.
//
// The pending entry is written before the mail goes out and is not rolled
// back if sending fails: the client simply submits again, which replaces
// the entry and sends a fresh code.
func (s *RegistrationService) Submit(ctx context.Context, sessionID string, in RegisterInput) error {
	if sessionID == "" {
		return apperror.InvalidState("registration session id is missing")
	}

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := s.validator.Struct(in); err != nil {
		return err
	}

	role, err := roleFromFlags(in.IsStudent, in.IsTeacher)
	if err != nil {
		return err
	}

	exists, err := s.accounts.EmailExists(ctx, in.Email)
	if err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return apperror.Conflict(msgEmailRegistered)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}

	entry := &model.PendingRegistration{
		SessionID:    sessionID,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         role,
		Code:         code,
		ExpiresAt:    s.now().Add(s.ttl),
	}
	if err := s.pending.SavePending(ctx, entry); err != nil {
		return fmt.Errorf("saving pending registration: %w", err)
	}

	err = s.mailer.Send(ctx, mail.Message{
		Subject: otpSubject,
		Body:    "Your OTP for registration is: " + code,
		From:    s.mailFrom,
		To:      []string{in.Email},
	})
	if err != nil {
		s.logger.Warn("otp dispatch failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, mail.ErrConnectivity) {
			return apperror.Unavailable(msgOTPSendFailed, err)
		}
		return apperror.External(msgOTPSendFailed, err)
	}

	s.logger.Info("registration submitted",
		slog.String("email", in.Email),
		slog.String("role", string(role)),
	)
	return nil
}

// Verify promotes the session's pending registration to an account.
//
// A wrong code leaves the entry in place so the user can retry. The entry
// is removed only after the account exists.
func (s *RegistrationService) Verify(ctx context.Context, sessionID string, in VerifyInput) (*model.Account, error) {
	in.Email = normalizeEmail(in.Email)
	in.OTP = strings.TrimSpace(in.OTP)

	if sessionID == "" {
		return nil, apperror.Missing(msgNoPending)
	}
	entry, err := s.pending.GetPending(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Missing(msgNoPending)
		}
		return nil, fmt.Errorf("loading pending registration: %w", err)
	}

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	// The code is an opaque string: "012345" and "12345" differ.
	codeOK := subtle.ConstantTimeCompare([]byte(entry.Code), []byte(in.OTP)) == 1
	if entry.Email != in.Email || !codeOK {
		return nil, apperror.ValidationFailed("otp", msgInvalidOTP)
	}

	exists, err := s.accounts.EmailExists(ctx, entry.Email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, apperror.Conflict(msgEmailRegistered)
	}

	account := &model.Account{
		Email:        entry.Email,
		Name:         entry.Name,
		PasswordHash: entry.PasswordHash,
		IsStudent:    entry.Role == model.RoleStudent,
		IsTeacher:    entry.Role == model.RoleTeacher,
	}
	// A concurrent Verify for the same email can pass the check above; the
	// unique email index turns the loser into a conflict here.
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict(msgEmailRegistered)
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	if err := s.pending.DeletePending(ctx, sessionID); err != nil {
		s.logger.Error("failed to clear pending registration",
			slog.String("accountID", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("account created",
		slog.String("accountID", account.ID),
		slog.String("role", string(entry.Role)),
	)
	return account, nil
}

func roleFromFlags(isStudent, isTeacher bool) (model.Role, error) {
	switch {
	case isStudent && isTeacher:
		return "", apperror.ValidationFailed("role", "User cannot be both student and teacher.")
	case isStudent:
		return model.RoleStudent, nil
	case isTeacher:
		return model.RoleTeacher, nil
	default:
		return "", apperror.ValidationFailed("role", "Select either student or teacher.")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode returns a uniformly random numeric code, zero padded.
func generateCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(otpDigits), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
