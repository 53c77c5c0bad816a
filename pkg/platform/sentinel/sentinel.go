package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped with fmt.Errorf and %w) and services translate them into coded
// domain errors.
//
//   - ErrNotFound: row does not exist (or is soft deleted)
//   - ErrAlreadyUsed: a unique value (email, tracking number) is taken
//   - ErrConflict: optimistic version check failed
//   - ErrExpired: code or token is past its expiry
//   - ErrInvalidState: row is in the wrong state for the operation
//   - ErrUnavailable: backing service is unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
