// Package httpx holds small helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/max0n1x/IIS/internal/errs"
)

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode parses the JSON request body into v.
func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Error maps sentinel errors to status codes. Internal details never reach
// the caller; anything unrecognized is reported as a generic server error.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, errs.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, errs.ErrForbidden):
		http.Error(w, "User is banned", http.StatusForbidden)
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, errs.ErrAlreadyExists):
		http.Error(w, "Already taken", http.StatusConflict)
	default:
		http.Error(w, "Server error", http.StatusInternalServerError)
	}
}
