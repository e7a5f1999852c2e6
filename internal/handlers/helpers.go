package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/lectio/internal/models"
)

// OwnerHeader carries the authenticated user id. Authentication itself
// happens upstream; this service trusts the header.
const OwnerHeader = "X-User-ID"

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// RequireOwner extracts the owner id from the trusted auth header.
// Returns "" after writing a 401 when the header is missing.
func RequireOwner(w http.ResponseWriter, r *http.Request) string {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		WriteError(w, http.StatusUnauthorized, "Missing user identity")
	}
	return ownerID
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps the service error taxonomy onto HTTP statuses
// and writes the error envelope.
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

// StatusForError maps a service error to its HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrEmptyContent), errors.Is(err, models.ErrNoQuestion):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrQuotaExceeded), errors.Is(err, models.ErrChatLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrNotReady), errors.Is(err, models.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
