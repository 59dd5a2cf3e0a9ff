package usecase

import "errors"

// Cross-cutting failure classes the services map their outcomes onto.
// The HTTP layer translates these to status codes; domain sentinels
// such as ledger.ErrInsufficientFunds stay wrapped underneath.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
