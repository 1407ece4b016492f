package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relayproj/relay/internal/logging"
)

// RunStream is a live WebSocket stream of structured message-stream events
// for one run. It is safe for concurrent use.
type RunStream struct {
	runID    string
	conn     *websocket.Conn
	handlers Handlers

	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ Stream = (*RunStream)(nil)

// dial opens the WebSocket stream for a run and starts the read loop.
func (c *Client) dial(ctx context.Context, runID string, h Handlers) (*RunStream, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = c.apiPrefix + "/runs/" + url.PathEscape(runID) + "/stream"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream connect: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &RunStream{
		runID:    runID,
		conn:     conn,
		handlers: h,
		cancel:   cancel,
	}
	go s.readLoop(streamCtx)
	return s, nil
}

// RunID returns the run this stream belongs to.
func (s *RunStream) RunID() string {
	return s.runID
}

// Close stops the read loop and closes the connection. It does not end the
// remote run. Closing an already-closed stream is a no-op.
func (s *RunStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close()
}

// isClosed reports whether Close was called.
func (s *RunStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// frame is a WebSocket message from the remote workflow.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readLoop reads frames until the connection closes.
func (s *RunStream) readLoop(ctx context.Context) {
	log := logging.WithRun(logging.Transport(), s.runID)
	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !s.isClosed() && s.handlers.OnDisconnected != nil {
				s.handlers.OnDisconnected(err)
			}
			return
		}
		if s.isClosed() {
			return
		}
		s.handleFrame(log, f)
	}
}

// handleFrame decodes one frame and dispatches it.
func (s *RunStream) handleFrame(log *slog.Logger, f frame) {
	switch f.Type {
	case "message_start":
		var data struct {
			RunID string `json:"run_id"`
		}
		if json.Unmarshal(f.Data, &data) == nil && s.handlers.OnStarted != nil {
			s.handlers.OnStarted(data.RunID)
		}

	case "text":
		var data struct {
			MessageID string `json:"message_id"`
			Text      string `json:"text"`
		}
		if json.Unmarshal(f.Data, &data) == nil && s.handlers.OnTextPart != nil {
			s.handlers.OnTextPart(data.MessageID, data.Text)
		}

	case "user_marker":
		var data struct {
			MessageID string    `json:"message_id"`
			ID        string    `json:"id"`
			Content   string    `json:"content"`
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal(f.Data, &data) == nil && s.handlers.OnMarker != nil {
			s.handlers.OnMarker(data.MessageID, data.ID, data.Content, data.Timestamp)
		}

	case "run_end":
		if s.handlers.OnRunEnded != nil {
			s.handlers.OnRunEnded()
		}

	case "error":
		var data struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(f.Data, &data) == nil && s.handlers.OnError != nil {
			s.handlers.OnError(data.Message)
		}

	default:
		log.Debug("ignoring unknown frame", "type", f.Type)
	}
}
