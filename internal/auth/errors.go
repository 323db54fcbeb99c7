package auth

import "errors"

var (
	// ErrInvalidToken indicates a malformed, tampered or wrongly signed
	// token. Maps to 401 at the HTTP boundary.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired is kept distinct from ErrInvalidToken so clients
	// can trigger a refresh instead of a re-login. Maps to 401.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrInsufficientRole indicates the token's role does not satisfy
	// the guard. Maps to 403.
	ErrInsufficientRole = errors.New("auth: insufficient role")

	// ErrMissingPermission indicates the required permission is absent
	// from the token. Maps to 403.
	ErrMissingPermission = errors.New("auth: missing permission")

	ErrUnauthorized = errors.New("auth: unauthorized")
)
