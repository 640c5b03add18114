package service

import "errors"

// Error kinds returned by Service. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("account not found")
	ErrUnauthorized      = errors.New("invalid credentials")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
)
