package session

import (
	"errors"
	"fmt"

	"github.com/relayproj/relay/internal/transport"
)

var (
	// ErrNoActiveSession is returned when a follow-up is attempted with no
	// run id known. This is a usage error: callers must start a run first.
	ErrNoActiveSession = errors.New("no active session")

	// ErrNoActiveRun is returned when a reconnect is attempted but no run
	// id is persisted at the moment of the attempt.
	ErrNoActiveRun = errors.New("no active run to reconnect")
)

// FollowUpRejectedError reports that the remote rejected a continuation
// message. The dedup token for the send is released before this error is
// returned, so the caller may retry.
type FollowUpRejectedError struct {
	// Details is the server-provided error message, when available.
	Details string
	// Err is the underlying transport error.
	Err error
}

func (e *FollowUpRejectedError) Error() string {
	return fmt.Sprintf("follow-up rejected: %s", e.Details)
}

func (e *FollowUpRejectedError) Unwrap() error {
	return e.Err
}

// newFollowUpRejected wraps a transport error, surfacing the details field
// of the remote's error body when present.
func newFollowUpRejected(err error) *FollowUpRejectedError {
	details := err.Error()
	var se *transport.StatusError
	if errors.As(err, &se) && se.Details != "" {
		details = se.Details
	}
	return &FollowUpRejectedError{Details: details, Err: err}
}
