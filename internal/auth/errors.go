package auth

import "errors"

var (
	// ErrTokenInvalid is returned when a JWT fails signature, expiry, or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidCredentials is returned when login credentials do not
	// match the configured operator.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
