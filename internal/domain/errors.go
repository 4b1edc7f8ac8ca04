package domain

import "errors"

// Sentinel errors shared by services and repositories. Services wrap them with
// fmt.Errorf("%w: ...") to attach detail; the HTTP layer maps them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
