package service

import "errors"

var (
	ErrInvalidCode    = errors.New("invalid authorization code")
	ErrUserNotFound   = errors.New("user not found")
	ErrSessionExpired = errors.New("session expired")

	// ErrNoConversations means the requested day has no chat sessions to
	// summarize or remember. Retrying does not help.
	ErrNoConversations = errors.New("no conversations on that day")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrUnknownSurface  = errors.New("unknown surface")
	ErrInvalidStyle    = errors.New("invalid style")

	// ErrSummaryUnavailable is returned when every backend in the summary
	// chain failed.
	ErrSummaryUnavailable = errors.New("summary unavailable")
)
