package handler

// Every endpoint answers with the same envelope:
//
//	{"message": "...", "data": {...}}                 success
//	{"message": "...", "error": "forbidden"}          failure
//
// "error" is a machine-readable kind; "message" is safe to show to users.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/coursemarket/internal/apperror"
)

const (
	msgGeneric     = "Something went wrong. Please contact support."
	msgInvalidJSON = "Request body must be valid JSON."
	maxBodyBytes   = 1 << 20
)

// Response is the envelope written by every handler.
type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeData(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	writeJSON(w, logger, status, Response{Message: message, Data: data})
}

// writeError maps an error to its status code and writes it.
//
//	ErrValidation   400    ErrNotFound     404
//	ErrForbidden    403    ErrConflict     409
//	ErrUnavailable  503    anything else   500
//
// Only validation, authorization, lookup and availability errors carry
// their own message to the client. Everything else, including external
// provider failures, gets the generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, logger, http.StatusInternalServerError, Response{Message: msgGeneric, Error: "internal_error"})
		return
	}

	status, kind := http.StatusInternalServerError, "internal_error"
	message := msgGeneric

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind, message = http.StatusBadRequest, "validation_error", appErr.Message
	case errors.Is(err, apperror.ErrNotFound):
		status, kind, message = http.StatusNotFound, "not_found", appErr.Message
	case errors.Is(err, apperror.ErrForbidden):
		status, kind, message = http.StatusForbidden, "forbidden", appErr.Message
	case errors.Is(err, apperror.ErrConflict):
		status, kind, message = http.StatusConflict, "conflict", appErr.Message
	case errors.Is(err, apperror.ErrUnavailable):
		status, kind, message = http.StatusServiceUnavailable, "service_unavailable", appErr.Message
		logger.Warn("dependency unavailable", slog.String("error", err.Error()))
	case errors.Is(err, apperror.ErrInvalidState):
		logger.Error("invariant violated",
			slog.String("kind", "invalid_state"),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, apperror.ErrExternal):
		logger.Error("external service error",
			slog.String("kind", "external"),
			slog.String("error", err.Error()),
		)
	default:
		logger.Error("unhandled error", slog.String("error", err.Error()))
	}

	writeJSON(w, logger, status, Response{Message: message, Error: kind, Field: appErr.Field})
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields are ignored; a malformed or oversized body is a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is required.")
		}
		return apperror.ValidationFailed("body", msgInvalidJSON)
	}
	return nil
}
