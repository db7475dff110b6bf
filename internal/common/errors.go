// Package common defines shared constants and sentinel errors used across
// the taskauth server and its admin tooling. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Account errors.
	ErrEmailInUse          = errors.New("email already in use")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountBanned       = errors.New("account is banned")
	ErrUserNotFound        = errors.New("user not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrAlreadyBanned       = errors.New("user is already banned")
	ErrNotBanned           = errors.New("user is not banned")
	ErrRoleAlreadyAssigned = errors.New("role already assigned")
	ErrAlreadyBootstrapped = errors.New("an administrator already exists")

	// Stored salt or digest could not be decoded.
	ErrCredentialFormat = errors.New("malformed credential material")

	// Token errors. All of them mean "unauthenticated" to the caller.
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed")
)

// IsTokenError reports whether err is one of the token validation failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed)
}
