package portal

import "errors"

// Sentinel errors for the portal domain. The transport maps gateway HTTP
// statuses onto these so callers can branch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)
