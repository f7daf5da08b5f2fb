package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tenant-auth-engine/internal/auth"
	"tenant-auth-engine/internal/otp"
	"tenant-auth-engine/internal/security"
	"tenant-auth-engine/internal/tenant"
)

// envelope is the uniform response body: success flag, human-readable
// message, and an optional data payload.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeAuthError maps orchestrator sentinels to status codes and messages.
// Anything unmapped is a 500 with a generic message; the cause is logged, not
// leaked.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, auth.ErrInvalidEmail):
		writeFailure(w, http.StatusBadRequest, "Invalid email format")
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeFailure(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrMissingToken):
		writeFailure(w, http.StatusUnauthorized, "No token provided")
	case errors.Is(err, security.ErrInvalidToken), errors.Is(err, security.ErrExpiredToken):
		writeFailure(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, auth.ErrInactiveAccount):
		writeFailure(w, http.StatusForbidden, "Your account is inactive")
	case errors.Is(err, auth.ErrInactiveTenant):
		writeFailure(w, http.StatusForbidden, "Organization is not active")
	case errors.Is(err, tenant.ErrTenantNotFound):
		writeFailure(w, http.StatusNotFound, "Organization not found")
	case errors.Is(err, otp.ErrUnknownIdentifier):
		writeFailure(w, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrOTPDelivery):
		writeFailure(w, http.StatusInternalServerError, "Failed to send OTP email. Please try again.")
	default:
		log.Printf("server: internal error: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody decodes a JSON request body into dst with a size cap. A body
// that fails to decode is treated as missing fields by the callers.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
