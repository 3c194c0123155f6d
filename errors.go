package courier

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when an operation that needs a signed-in
// user runs while signed out. Token syncs hitting this condition are
// deferred, not failed; see TokenSync.
var ErrNoSession = errors.New("no active session: call SignIn first")

// APIError represents an HTTP response whose status code was outside
// the caller's accepted set.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
	Method     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, e.Status, e.Body)
}
