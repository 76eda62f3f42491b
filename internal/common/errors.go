// Package common defines shared sentinel errors and small helpers used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Input errors. User-correctable, surfaced as 400.
	ErrValidation = errors.New("validation error")

	// Categorical value absent from a trained vocabulary. Handled by the
	// fallback code and never surfaced to clients.
	ErrUnknownCategory = errors.New("unknown category")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	// Inference errors.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrInference        = errors.New("inference error")

	// Generic internal failure.
	ErrInternal = errors.New("internal error")
)
