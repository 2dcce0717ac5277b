package vault

import "errors"

var (
	// ErrNoSecret is returned by a SecretStore when no secret has been generated yet.
	ErrNoSecret = errors.New("no secret found")

	ErrEntropySource  = errors.New("random source unavailable")
	ErrInvalidSecret  = errors.New("invalid secret")
	ErrMalformedToken = errors.New("malformed token")
)
