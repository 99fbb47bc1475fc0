package utils

import "errors"

// Application errors. Services wrap them with context; the HTTP layer maps
// each one to a distinct status code with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("invalid card state")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrGenerationExhausted = errors.New("failed to generate unique card number")
	ErrCryptoFailure       = errors.New("card number crypto failure")
	ErrConflict            = errors.New("concurrent modification")
	ErrDuplicateEntry      = errors.New("duplicate entry")
	ErrUnauthorized        = errors.New("unauthorized")
)
