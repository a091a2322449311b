package service

import "errors"

// Lifecycle error taxonomy. Handlers map these to HTTP statuses, the gateway
// maps them to message-error events tagged with the client's correlation id.
var (
	ErrInvalidContent = errors.New("message content is empty or too large")
	ErrRateLimited    = errors.New("too many messages, slow down")
	ErrUnknownSender  = errors.New("sender is not a known user")
	ErrNotFound       = errors.New("message not found")
	ErrNotOwner       = errors.New("only the author may do that")
	ErrTooOld         = errors.New("edit window has expired")
	ErrUpstream       = errors.New("upstream dependency unavailable")
)
