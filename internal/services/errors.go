package services

import (
	"errors"
	"fmt"

	"games_catalog/internal/models"
	"games_catalog/internal/storage"
)

type sentinel struct {
	msg    string
	parent error
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.parent }

var (
	ErrNotFound     = storage.ErrNotFound
	ErrUnauthorized = errors.New("authentication required")
	ErrValidation   = errors.New("validation failed")

	// ErrForbidden is an ErrUnauthorized: the caller is known but is not the owner.
	ErrForbidden = &sentinel{msg: "you do not own this resource", parent: ErrUnauthorized}

	ErrInvalidCredentials = &sentinel{msg: "invalid username or password", parent: ErrUnauthorized}
	ErrInvalidRating      = &sentinel{
		msg:    fmt.Sprintf("rating must be between %d and %d", models.RatingMin, models.RatingMax),
		parent: ErrValidation,
	}
)

// ValidationError is a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
