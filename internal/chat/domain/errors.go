package domain

import "errors"

var (
	// ErrInvalidArgument input missing or malformed
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized caller not authenticated
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden caller authenticated but not allowed
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound target record missing
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExecuted digest already ran inside the cooldown window
	ErrAlreadyExecuted = errors.New("already executed")
	// ErrConflict write raced with another writer or a limit was hit
	ErrConflict = errors.New("conflict")
)
