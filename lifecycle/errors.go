package lifecycle

import "errors"

// Errors returned by the Manager
var (
	ErrNotFound          = errors.New("report not found")
	ErrUnauthorized      = errors.New("an authenticated actor is required")
	ErrInvalidStatus     = errors.New("invalid report status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidDraft      = errors.New("invalid report draft")
)
