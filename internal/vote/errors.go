package vote

import "errors"

var (
	ErrValidation = errors.New("invalid vote")
	// ErrDuplicateRequest means the idempotency token was already applied.
	// The caller must not retry with the same token.
	ErrDuplicateRequest = errors.New("duplicate vote attempt detected (jti conflict)")
)
