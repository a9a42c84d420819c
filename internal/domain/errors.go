package domain

import "errors"

// Domain errors.
var (
	// ErrProtectedAccount is returned when the post author restricts
	// visibility. Never retried and never falls back between resolver
	// strategies.
	ErrProtectedAccount = errors.New("account is protected")

	// ErrUpstreamFailure is returned for any structured-API or extractor
	// failure other than a protected account.
	ErrUpstreamFailure = errors.New("upstream resolution failed")

	// ErrInvalidIdentifier is returned when a media identifier is malformed
	// or resolves outside the permitted storage root.
	ErrInvalidIdentifier = errors.New("invalid media identifier")

	// ErrCacheUnavailable is returned when the configured cache backend
	// cannot be reached. Reads degrade to a miss, writes degrade to a no-op.
	ErrCacheUnavailable = errors.New("link cache unavailable")

	// ErrRateLimited is returned when an upstream throttles us.
	ErrRateLimited = errors.New("rate limited")

	// ErrURLExpired is returned when a media URL no longer grants access.
	ErrURLExpired = errors.New("media URL has expired")
)

// ResolveError wraps an error with the source URL and strategy that failed.
type ResolveError struct {
	SourceURL string
	Strategy  string
	Err       error
}

func (e *ResolveError) Error() string {
	return "resolve " + e.SourceURL + " via " + e.Strategy + ": " + e.Err.Error()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a new ResolveError.
func NewResolveError(sourceURL, strategy string, err error) *ResolveError {
	return &ResolveError{SourceURL: sourceURL, Strategy: strategy, Err: err}
}
