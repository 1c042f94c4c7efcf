package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProposalNotFound signals a missing proposal (or one owned by another tenant).
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrTicketNotFound signals a ticket the ticketing system does not know.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTenantNotFound signals a tenant without configuration for the requested platform.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrUnauthorized signals a missing or invalid tenant identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRevisionConflict signals an optimistic locking conflict.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrInvalidTransition signals an approval action on a proposal that is no longer a draft.
	ErrInvalidTransition = errors.New("invalid proposal transition")
	// ErrValidation signals a proposal or request that fails schema checks.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrModelProviderError signals a resolution model failure.
	ErrModelProviderError = errors.New("model provider error")
	// ErrMalformedOutput signals model output that could not be parsed.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
	// ErrRetrievalUnavailable signals that every retrieval backend failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// RevisionConflictError wraps ErrRevisionConflict with the state the winning writer left behind.
type RevisionConflictError struct {
	CurrentVersion int
	CurrentStatus  string
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("%s: version %d is %s",
		ErrRevisionConflict.Error(), e.CurrentVersion, e.CurrentStatus)
}

func (e *RevisionConflictError) Unwrap() error { return ErrRevisionConflict }

// NewRevisionConflict creates a revision conflict error.
func NewRevisionConflict(currentVersion int, currentStatus string) error {
	return &RevisionConflictError{CurrentVersion: currentVersion, CurrentStatus: currentStatus}
}
