package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/service"
)

// RegistrationCookie ties a verify request to the submit that created the
// pending registration.
const RegistrationCookie = "registration_session"

// AuthHandler serves sign-up and login.
//
//   - HandleRegister → validate, park the registration, mail a code
//   - HandleVerify   → check the code, create the account
//   - HandleLogin    → check credentials, issue a JWT
type AuthHandler struct {
	registration Registrar
	auth         Authenticator
	tokenTTL     time.Duration
	pendingTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	registration Registrar,
	authenticator Authenticator,
	tokenTTL, pendingTTL time.Duration,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		auth:         authenticator,
		tokenTTL:     tokenTTL,
		pendingTTL:   pendingTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleRegister starts a registration.
//
// HTTP: POST /api/register
// BODY: {"email","name","password","confirm_password","is_student","is_teacher"}
//
// A client without a registration cookie gets a fresh one. Submitting
// again with the same cookie replaces the pending entry and sends a new
// code.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sessionID := ""
	if c, err := r.Cookie(RegistrationCookie); err == nil && c.Value != "" {
		sessionID = c.Value
	} else {
		sessionID = xid.New().String()
	}

	// Set before submitting so a failed mail send can be retried on the
	// same session.
	http.SetCookie(w, &http.Cookie{
		Name:     RegistrationCookie,
		Value:    sessionID,
		Path:     "/api",
		MaxAge:   int(h.pendingTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if err := h.registration.Submit(r.Context(), sessionID, in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, Response{Message: "OTP has been sent to your email. Please verify."})
}

// HandleVerify completes a registration.
//
// HTTP: POST /api/verify
// BODY: {"email","otp"}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var in service.VerifyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sessionID := ""
	if c, err := r.Cookie(RegistrationCookie); err == nil {
		sessionID = c.Value
	}

	account, err := h.registration.Verify(r.Context(), sessionID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.clearCookie(w, RegistrationCookie, "/api")
	writeData(w, h.logger, http.StatusCreated, "User saved successfully.", account)
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Role    string `json:"role"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// HandleLogin issues a JWT.
//
// HTTP: POST /api/login
// BODY: {"email","password"}
//
// The token is returned in the body for API clients and set as an
// HttpOnly cookie for browsers.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, h.logger, http.StatusOK, loginResponse{
		Message: res.Message,
		Token:   res.Token,
		Role:    string(res.Account.Role()),
		Email:   res.Account.Email,
		Name:    res.Account.Name,
	})
}

// HandleLogout clears the token cookie. Tokens stay valid until they
// expire.
//
// HTTP: POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w, auth.TokenCookie, "/")
	writeJSON(w, h.logger, http.StatusOK, Response{Message: "Logged out."})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
