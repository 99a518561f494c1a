package credpool

import "errors"

var (
	// ErrNoCredentialAvailable is returned by Select when the pool has no
	// active credential. Callers treat it as a hard failure.
	ErrNoCredentialAvailable = errors.New("credpool: no credential available")

	// ErrInvalidCredential rejects a secret that cannot be a valid key.
	ErrInvalidCredential = errors.New("credpool: invalid credential")

	// ErrUnknownCredential is returned when reporting against an id the pool
	// does not hold.
	ErrUnknownCredential = errors.New("credpool: unknown credential")

	// ErrNoSource is returned by SyncFromSource on a pool built without one.
	ErrNoSource = errors.New("credpool: no credential source configured")
)
