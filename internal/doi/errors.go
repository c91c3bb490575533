package doi

import (
	"errors"
	"fmt"

	"github.com/matsen/shelf/internal/failure"
)

// Errors returned by the Crossref client.
var (
	// ErrNotFound indicates Crossref has no record for the DOI.
	ErrNotFound = fmt.Errorf("%w: DOI not registered with Crossref", failure.ErrNotFound)

	// ErrRateLimited indicates Crossref refused the request for rate.
	ErrRateLimited = errors.New("crossref rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = fmt.Errorf("%w: network error communicating with Crossref", failure.ErrIO)

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response from Crossref", failure.ErrDecode)

	// ErrInvalidDOI indicates the input does not look like a DOI.
	ErrInvalidDOI = errors.New("invalid DOI")
)

// APIError is a non-success HTTP status from Crossref.
type APIError struct {
	StatusCode int
	Message    string
	DOI        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crossref error (status %d): %s (doi: %s)", e.StatusCode, e.Message, e.DOI)
}

// IsNotFound returns true if the error indicates the DOI is unknown.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}
