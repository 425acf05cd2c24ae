package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid principal in a disallowed state
	ErrForbidden = errors.New("forbidden")

	// ErrAccountInactive indicates the principal has been deactivated
	ErrAccountInactive = fmt.Errorf("%w: account inactive", ErrForbidden)

	// ErrNotVerified indicates the operation requires a verified email
	ErrNotVerified = fmt.Errorf("%w: email not verified", ErrForbidden)

	// ErrTokenMalformed indicates the token could not be decoded
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenSignatureInvalid indicates the token signature did not verify
	ErrTokenSignatureInvalid = errors.New("token signature invalid")

	// ErrTokenExpired indicates the token is past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenPurposeMismatch indicates the token was minted for another purpose
	ErrTokenPurposeMismatch = errors.New("token purpose mismatch")

	// ErrInvalidOrExpiredToken is the collapsed failure for verify-email and reset flows
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited indicates too many failed attempts
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a collaborator timed out or could not be reached
	ErrUnavailable = errors.New("service unavailable")
)

// IsTokenFailure reports whether err is one of the token verification failures.
func IsTokenFailure(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenSignatureInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenPurposeMismatch)
}
