package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrPriceNotFound    = errors.New("no price entry for sku")
	ErrMalformedEvent   = errors.New("malformed callback token")
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrTurnInProgress   = errors.New("another turn for this conversation is in progress")
	ErrRateLimited      = errors.New("too many messages, slow down")
)

// UpstreamError is any non-2xx answer from the commerce backend. It is never
// retried here; the turn that triggered it fails and the conversation state
// stays at its pre-turn value.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("commerce %s: status %d: %s", e.Op, e.Status, e.Body)
}
