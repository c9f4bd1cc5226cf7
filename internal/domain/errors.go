package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in handlers.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// ValidationError indicates invalid or missing request input.
	// Generation never starts when one of these is raised.
	ValidationError struct {
		Message string
	}

	// NoResultsError indicates a search pre-step returned zero results,
	// aborting the turn before the LLM is ever contacted.
	NoResultsError struct {
		Query string
	}

	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}
)

func (e *ValidationError) Error() string { return e.Message }
func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no search results found for query: %s", e.Query)
}
func (e *NotFoundError) Error() string { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *NoResultsError) StatusCode() int  { return http.StatusNotFound }
func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }

// UpstreamError carries the HTTP status and body text of a failed call to
// the LLM endpoint or a pre-step service. Never retried automatically.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Body)
}

// StatusCode maps any upstream failure to 502 at this service's boundary.
// The original status travels in the Status field for the presentation layer.
func (e *UpstreamError) StatusCode() int { return http.StatusBadGateway }

// Sentinel errors - use with errors.Is()
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream failure")
	ErrNoResults  = errors.New("no results")

	// ErrCancelled is a first-class terminal outcome, not a failure.
	// A cancelled generation salvages partial output into a completed turn.
	ErrCancelled = errors.New("generation cancelled")
)

// Is hooks so typed errors match their sentinels.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *NoResultsError) Is(target error) bool  { return target == ErrNoResults }
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *UpstreamError) Is(target error) bool   { return target == ErrUpstream }
