package auth

import "errors"

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and unusable claims.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrTokenExpired is returned for a correctly signed token older than the allowed age.
	ErrTokenExpired = errors.New("session token expired")
	// ErrUnauthenticated is the only failure Resolver reports for a bad credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSecretTooShort is returned when the signing secret is under MinSecretLength bytes.
	ErrSecretTooShort = errors.New("session secret too short")
)
