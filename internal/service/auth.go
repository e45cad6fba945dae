package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/policy"
	"github.com/sakif/coursemarket/internal/repository"
)

const msgBadCredentials = "Invalid username or password."

// AuthService handles login and turns an authenticated account id into a
// policy.Actor for the other services.
type AuthService struct {
	accounts  repository.AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validator *Validator
	logger    *slog.Logger
}

func NewAuthService(
	accounts repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		validator: NewValidator(),
		logger:    logger,
	}
}

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on successful login. Message tells the client
// which dashboard to open.
type LoginResult struct {
	Account *model.Account
	Token   string
	Message string
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("email", msgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: loading account: %w", err)
	}

	if err := s.passwords.Verify(account.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.ValidationFailed("password", msgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	token, err := s.tokens.Generate(account.ID, account.Role())
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", account.ID, err)
	}

	s.logger.Info("account logged in",
		slog.String("accountID", account.ID),
		slog.String("role", string(account.Role())),
	)

	return &LoginResult{
		Account: account,
		Token:   token,
		Message: loginMessage(account.Role()),
	}, nil
}

func loginMessage(role model.Role) string {
	switch role {
	case model.RoleTeacher:
		return "Login successful. Redirecting to teacher dashboard."
	case model.RoleStudent:
		return "Login successful. Redirecting to student dashboard."
	default:
		return "Login successful."
	}
}

// ResolveActor loads the account and its role profile.
//
// A missing profile is not an error here: the actor is returned with the
// profile id empty and policy.CanAccess reports it as an invalid state.
func (s *AuthService) ResolveActor(ctx context.Context, accountID string) (policy.Actor, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return policy.Actor{}, apperror.Forbidden("Account no longer exists.")
		}
		return policy.Actor{}, fmt.Errorf("service/auth: loading account %s: %w", accountID, err)
	}

	actor := policy.Actor{AccountID: account.ID, Role: account.Role()}

	switch actor.Role {
	case model.RoleTeacher:
		profile, err := s.accounts.GetTeacherProfile(ctx, account.ID)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return policy.Actor{}, fmt.Errorf("service/auth: loading teacher profile: %w", err)
		}
		if profile != nil {
			actor.TeacherID = profile.ID
		}
	case model.RoleStudent:
		profile, err := s.accounts.GetStudentProfile(ctx, account.ID)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return policy.Actor{}, fmt.Errorf("service/auth: loading student profile: %w", err)
		}
		if profile != nil {
			actor.StudentID = profile.ID
		}
	}

	return actor, nil
}
