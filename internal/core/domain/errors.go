package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Registry-level errors. These are surfaced to the caller immediately and
// never retried.
var (
	// ErrDuplicateProvider indicates a provider name is already registered.
	ErrDuplicateProvider = errors.New("provider already registered")

	// ErrProviderNotFound indicates an explicitly requested provider is not registered.
	ErrProviderNotFound = errors.New("provider not registered")

	// ErrProviderUnavailable indicates an explicitly requested provider is disabled.
	ErrProviderUnavailable = errors.New("provider disabled")

	// ErrNoProviderAvailable indicates no registered provider qualifies for
	// the document and operation.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrInvalidOperation indicates an operation outside the closed set.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Provider invocation errors. Providers wrap these sentinels so the
// orchestrator can classify failures without knowing provider internals.
var (
	// ErrUnsupportedContent indicates the document content cannot be handled
	// by this provider (malformed or unsupported). Permanent for the
	// document; the orchestrator skips to the next candidate without retry.
	ErrUnsupportedContent = errors.New("unsupported or malformed content")

	// ErrProviderAuth indicates failed authentication or misconfiguration.
	// Permanent for the provider; it is disabled for the process lifetime.
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrRateLimited indicates the provider's backing service throttled the
	// call. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderTransient indicates a retryable provider-internal failure.
	ErrProviderTransient = errors.New("transient provider failure")
)

// FailureClass partitions invocation failures for the fallback policy.
type FailureClass string

// Failure classes.
const (
	// ClassTransient failures (timeout, rate limit, network) are retried a
	// bounded number of times and count towards the soft circuit breaker.
	ClassTransient FailureClass = "transient"

	// ClassPermanentDocument failures skip to the next candidate.
	ClassPermanentDocument FailureClass = "permanent-document"

	// ClassPermanentProvider failures disable the provider for the process.
	ClassPermanentProvider FailureClass = "permanent-provider"
)

// Classify maps an invocation error to its failure class. Unknown errors are
// treated as permanent for the document: retrying an unclassified failure is
// more likely to burn quota than to succeed.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, ErrProviderAuth):
		return ClassPermanentProvider
	case errors.Is(err, ErrUnsupportedContent):
		return ClassPermanentDocument
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrProviderTransient),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassPermanentDocument
}

// Attempt records one failed provider invocation for diagnostics.
type Attempt struct {
	// Provider is the provider that was tried.
	Provider string `json:"provider"`

	// Reason is the failure message.
	Reason string `json:"reason"`

	// Class is the failure classification.
	Class FailureClass `json:"class"`

	// Retries is how many extra attempts were made before giving up.
	Retries int `json:"retries,omitempty"`
}

// AllProvidersFailedError reports that every candidate failed. It carries
// the full ordered attempt trail and is always surfaced verbatim.
type AllProvidersFailedError struct {
	// RequestID correlates the failure with log entries.
	RequestID string

	// Operation is the operation that was requested.
	Operation Operation

	// Attempts lists every candidate tried, in order.
	Attempts []Attempt
}

// Error implements the error interface.
func (e *AllProvidersFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d providers failed for %s", len(e.Attempts), e.Operation)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %s", a.Provider, a.Reason)
	}
	return b.String()
}
