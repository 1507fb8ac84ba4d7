// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrUnauthorized indicates an invalid or expired validation key, or an
	// actor that is not the owner/author/participant of the target entity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g. email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrForbidden indicates a banned account or a missing role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalid indicates a malformed or incomplete request.
	ErrInvalid = errors.New("invalid request")
)
