// Package transport connects the session manager to the remote workflow
// engine. The session layer consumes the narrow Adapter interface; this
// package also supplies the default implementation, which starts runs over
// HTTP and streams message parts over a WebSocket connection.
package transport

import (
	"context"
	"fmt"
	"time"
)

// TerminationMessage is the reserved follow-up body that asks the remote
// run to terminate.
const TerminationMessage = "/done"

// StartRequest is the request shape for starting a new run.
type StartRequest struct {
	// Message is the user message that starts the run.
	Message string `json:"message"`
}

// Handlers defines callbacks for stream events. All callbacks are optional;
// nil callbacks are ignored. For a given stream, callbacks are invoked from
// a single goroutine, so deliveries are serialized.
type Handlers struct {
	// OnStarted is called when the stream confirms the run it serves.
	// Not every server emits the confirmation frame; the run id from
	// the start response is authoritative either way.
	OnStarted func(runID string)

	// OnTextPart is called when assistant text arrives for a message.
	OnTextPart func(messageID, text string)

	// OnMarker is called when the stream embeds a user-message marker:
	// a user message that was sent through a side channel while the
	// assistant was responding. messageID names the assistant message
	// the marker arrived inside of.
	OnMarker func(messageID, markerID, content string, timestamp time.Time)

	// OnRunEnded is called when the remote signals end of the response.
	OnRunEnded func()

	// OnError is called when the remote reports a stream-level error.
	OnError func(message string)

	// OnDisconnected is called when the stream connection is closed,
	// with the error that ended the read loop.
	OnDisconnected func(err error)
}

// Stream is a live event stream for one run. Closing a stream stops the
// read loop and the underlying connection; it does not end the remote run.
type Stream interface {
	RunID() string
	Close() error
}

// Adapter is the narrow interface the session manager consumes.
type Adapter interface {
	// Start initiates a new run and attaches to its stream. The run
	// identifier is returned via the stream.
	Start(ctx context.Context, req StartRequest, h Handlers) (Stream, error)

	// Reconnect attaches to the stream of an existing run.
	Reconnect(ctx context.Context, runID string, h Handlers) (Stream, error)

	// SendFollowUp sends a continuation message to an existing run.
	SendFollowUp(ctx context.Context, runID, text string) error

	// EndRun notifies the remote run of termination.
	EndRun(ctx context.Context, runID string) error
}

// StatusError is a non-success HTTP response from the remote workflow. The
// Details field carries the server-provided error message, when present.
type StatusError struct {
	StatusCode int
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Details)
	}
	return fmt.Sprintf("remote returned status %d", e.StatusCode)
}
