package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork indicates the reference service could not be reached.
	ErrNetwork = errors.New("network error fetching references")

	// ErrInvalidResponse indicates a body that is not a reference list.
	ErrInvalidResponse = errors.New("invalid reference response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	DocumentID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch references for %s: status %d", e.DocumentID, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the reference service.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Failure is the user-facing class of a failed fetch.
type Failure int

const (
	// TransportOrServerError covers network failures, 5xx, timeouts and
	// malformed responses.
	TransportOrServerError Failure = iota
	// NotFound means no references exist for the document.
	NotFound
)

const (
	notFoundMessage = "No reference data available for this paper."
	genericMessage  = "Whoops! Something went wrong. Please contact an administrator if the problem persists."
)

// Classify maps a fetch error to a Failure.
func Classify(err error) Failure {
	if IsNotFound(err) {
		return NotFound
	}
	return TransportOrServerError
}

// Message is the text shown in place of the reference list.
func (f Failure) Message() string {
	if f == NotFound {
		return notFoundMessage
	}
	return genericMessage
}

// String returns a metrics-friendly label.
func (f Failure) String() string {
	if f == NotFound {
		return "not_found"
	}
	return "error"
}
