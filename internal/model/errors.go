package model

import "errors"

// Fetch errors. Only the upstream kinds cross the orchestrator boundary.
var (
	// ErrUpstreamThrottled is returned when the upstream site rate limited every strategy.
	ErrUpstreamThrottled = errors.New("upstream rate limited")

	// ErrUpstreamAuthRequired is returned when the upstream site demanded a signed-in session.
	ErrUpstreamAuthRequired = errors.New("upstream authentication required")

	// ErrUpstreamFailure is returned for any other exhausted fetch.
	ErrUpstreamFailure = errors.New("upstream fetch failed")

	// ErrArtifactNotProduced is returned when the extractor exited cleanly without writing the file.
	ErrArtifactNotProduced = errors.New("extractor reported success but produced no file")

	// ErrNoResults is returned when a search strategy yielded no parseable lines.
	ErrNoResults = errors.New("no parseable search results")

	// ErrArtifactNotFound is returned when a requested artifact is absent.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// FailureKind is the outward classification of an exhausted fetch
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureThrottled
	FailureAuthRequired
)

// Err returns the sentinel error of the kind
func (k FailureKind) Err() error {
	switch k {
	case FailureThrottled:
		return ErrUpstreamThrottled
	case FailureAuthRequired:
		return ErrUpstreamAuthRequired
	}
	return ErrUpstreamFailure
}

func (k FailureKind) String() string {
	switch k {
	case FailureThrottled:
		return "throttled"
	case FailureAuthRequired:
		return "auth_required"
	}
	return "generic"
}
