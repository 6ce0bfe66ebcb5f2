package model

import "errors"

// Error taxonomy shared by the store, lifecycle managers and the API boundary.
// Operations wrap these with detail; match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
)
