// Package session manages the lifecycle of a conversation with a remote
// workflow run: deciding whether an outgoing message starts a new run or
// continues an existing one, resuming an in-flight stream from durable
// state after a reload, and exposing the reconciled conversation timeline.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relayproj/relay/internal/logging"
	"github.com/relayproj/relay/internal/store"
	"github.com/relayproj/relay/internal/timeline"
	"github.com/relayproj/relay/internal/transport"
)

// Status is the externally visible activity state of the session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Route is the destination for an outgoing message.
type Route string

const (
	// RouteStart starts a new remote run.
	RouteStart Route = "start"
	// RouteFollowUp continues an existing run.
	RouteFollowUp Route = "follow-up"
)

// RouteFor returns the routing decision for an outgoing message. It is a
// pure function of whether a run id is currently known, never of message
// content.
func RouteFor(hasRunID bool) Route {
	if hasRunID {
		return RouteFollowUp
	}
	return RouteStart
}

// lifecycle is the internal session state.
type lifecycle int

const (
	// stateAbsent: no run id is known.
	stateAbsent lifecycle = iota
	// stateResuming: a prior run id was found in durable storage at
	// startup; stream reconnection should be attempted.
	stateResuming
	// stateActive: a run id is known and confirmed.
	stateActive
)

// Callbacks notify the caller of session changes. All callbacks are
// optional and are invoked while no Manager methods are blocked, one at a
// time.
type Callbacks struct {
	// OnTimelineChanged delivers the freshly reconciled timeline.
	OnTimelineChanged func([]timeline.Message)
	// OnStatusChanged delivers status transitions.
	OnStatusChanged func(Status)
	// OnRunEnded is called when the remote signals end of a response.
	OnRunEnded func()
}

// Manager is the client-side session manager. It is safe for concurrent
// use; all state transitions are serialized on an internal mutex.
type Manager struct {
	runs    store.RunStore
	adapter transport.Adapter
	cb      Callbacks
	log     *slog.Logger

	mu         sync.Mutex
	state      lifecycle
	status     Status
	lastErr    error
	raw        []timeline.Message
	reconciled []timeline.Message

	// Follow-up dedup bookkeeping, cleared when the session ends.
	followSeq uint64
	inflight  map[string]struct{}
	consumed  map[string]struct{}

	// Active stream and its generation. Events carrying a stale
	// generation are dropped, which makes Stop synchronous from the
	// caller's perspective: once the generation advances, no pending
	// chunk can reach the timeline.
	stream transport.Stream
	gen    uint64
}

// New creates a session manager over the given run store and transport
// adapter. If the store already holds a run id (a prior session survived a
// reload), the manager starts in the resuming state and the caller should
// invoke Resume to reattach to the stream.
func New(runs store.RunStore, adapter transport.Adapter, cb Callbacks) *Manager {
	m := &Manager{
		runs:     runs,
		adapter:  adapter,
		cb:       cb,
		log:      logging.Session(),
		state:    stateAbsent,
		status:   StatusIdle,
		inflight: make(map[string]struct{}),
		consumed: make(map[string]struct{}),
	}
	if id, ok := runs.Get(); ok {
		m.state = stateResuming
		m.log.Debug("found persisted run, awaiting resume", "run_id", id)
	}
	return m
}

// NeedsResume reports whether a persisted run id was found at startup and
// Resume has not yet run.
func (m *Manager) NeedsResume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateResuming
}

// Resume reattaches to the stream of the persisted run. The run id is read
// from the store at the moment of the attempt, not from a value captured
// earlier: it may have been cleared or replaced since startup. When no id
// is persisted the session falls back to absent and ErrNoActiveRun is
// returned.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	gen := m.gen
	id, ok := m.runs.Get()
	if !ok {
		m.state = stateAbsent
		m.mu.Unlock()
		return ErrNoActiveRun
	}
	m.mu.Unlock()

	stream, err := m.adapter.Reconnect(ctx, id, m.handlers(gen))
	if err != nil {
		m.setError(fmt.Errorf("resume run %s: %w", id, err))
		return err
	}

	m.mu.Lock()
	m.state = stateActive
	m.stream = stream
	m.mu.Unlock()
	m.setStatus(StatusStreaming)
	m.log.Info("resumed run", "run_id", id)
	return nil
}

// SendMessage sends a user message. If no run id is currently known it
// starts a new run; otherwise it dispatches a follow-up to the existing
// run. The message appears in the timeline immediately as an optimistic
// user message.
func (m *Manager) SendMessage(ctx context.Context, text string, opts ...SendOption) error {
	m.mu.Lock()
	runID, hasRun := m.runs.Get()
	m.raw = append(m.raw, timeline.NewUserMessage(uuid.NewString(), text))
	m.reconcileLocked()
	m.mu.Unlock()
	m.notifyTimeline()
	m.setStatus(StatusSubmitted)

	switch RouteFor(hasRun) {
	case RouteStart:
		return m.startRun(ctx, text)
	default:
		return m.sendFollowUp(ctx, runID, text, opts...)
	}
}

// startRun asks the transport to start a new run and persists the returned
// run id.
func (m *Manager) startRun(ctx context.Context, text string) error {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	stream, err := m.adapter.Start(ctx, transport.StartRequest{Message: text}, m.handlers(gen))
	if err != nil {
		m.setError(fmt.Errorf("start run: %w", err))
		return err
	}

	runID := stream.RunID()
	if err := m.runs.Set(runID); err != nil {
		// The run exists remotely but won't survive a reload.
		m.log.Warn("failed to persist run id", "run_id", runID, "error", err)
	}

	m.mu.Lock()
	m.state = stateActive
	m.stream = stream
	m.mu.Unlock()
	m.setStatus(StatusStreaming)
	m.log.Info("run started", "run_id", runID)
	return nil
}

// SendFollowUp sends a continuation message to the already-active run. It
// fails with ErrNoActiveSession when no run id is known.
func (m *Manager) SendFollowUp(ctx context.Context, text string, opts ...SendOption) error {
	runID, ok := m.runs.Get()
	if !ok {
		return ErrNoActiveSession
	}
	return m.sendFollowUp(ctx, runID, text, opts...)
}

// Stop halts consumption of the active stream. No further stream events
// reach the timeline after Stop returns. The remote run is not ended.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.gen++
	s := m.stream
	m.stream = nil
	m.mu.Unlock()

	if s != nil {
		if err := s.Close(); err != nil {
			m.log.Debug("stream close", "error", err)
		}
	}
	m.setStatus(StatusIdle)
}

// EndSession terminates the session. The remote run is notified on a
// best-effort basis: a failed termination notice is logged, never
// propagated, and local cleanup always proceeds. All durable and in-memory
// session state is cleared. EndSession is idempotent; with no active
// session it performs only the local clears.
func (m *Manager) EndSession(ctx context.Context) error {
	m.mu.Lock()
	runID, hasRun := m.runs.Get()
	m.gen++
	s := m.stream
	m.stream = nil
	m.mu.Unlock()

	if hasRun {
		if err := m.adapter.EndRun(ctx, runID); err != nil {
			m.log.Warn("termination notice failed", "run_id", runID, "error", err)
		}
	}
	if s != nil {
		_ = s.Close()
	}

	m.mu.Lock()
	if err := m.runs.Clear(); err != nil {
		m.log.Warn("failed to clear persisted run id", "error", err)
	}
	m.state = stateAbsent
	m.raw = nil
	m.reconciled = nil
	m.followSeq = 0
	m.inflight = make(map[string]struct{})
	m.consumed = make(map[string]struct{})
	m.lastErr = nil
	m.mu.Unlock()

	m.notifyTimeline()
	m.setStatus(StatusIdle)
	if hasRun {
		m.log.Info("session ended", "run_id", runID)
	}
	return nil
}

// Timeline returns the current reconciled timeline.
func (m *Manager) Timeline() []timeline.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]timeline.Message, len(m.reconciled))
	copy(out, m.reconciled)
	return out
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the most recent surfaced error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// RunID returns the currently persisted run id, if one exists.
func (m *Manager) RunID() (string, bool) {
	return m.runs.Get()
}

// handlers builds the stream handlers for a given stream generation.
// Events are dropped once the generation is stale (after Stop, EndSession,
// or a newer stream).
func (m *Manager) handlers(gen uint64) transport.Handlers {
	return transport.Handlers{
		OnTextPart: func(messageID, text string) {
			m.applyEvent(gen, func() {
				m.appendAssistantPart(messageID, timeline.TextPart{Text: text})
			})
		},
		OnMarker: func(messageID, markerID, content string, ts time.Time) {
			m.applyEvent(gen, func() {
				m.appendAssistantPart(messageID, timeline.MarkerPart{
					ID:        markerID,
					Content:   content,
					Timestamp: ts,
				})
			})
		},
		OnRunEnded: func() {
			if !m.genCurrent(gen) {
				return
			}
			m.setStatus(StatusIdle)
			if m.cb.OnRunEnded != nil {
				m.cb.OnRunEnded()
			}
		},
		OnError: func(msg string) {
			if !m.genCurrent(gen) {
				return
			}
			m.setError(fmt.Errorf("stream error: %s", msg))
		},
		OnDisconnected: func(err error) {
			if !m.genCurrent(gen) {
				return
			}
			m.setError(fmt.Errorf("stream disconnected: %w", err))
		},
	}
}

// applyEvent folds a stream event into the raw history if the generation
// is still current, then re-reconciles.
func (m *Manager) applyEvent(gen uint64, fn func()) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	fn()
	m.reconcileLocked()
	m.mu.Unlock()
	m.notifyTimeline()
}

// genCurrent reports whether the generation is still current.
func (m *Manager) genCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// appendAssistantPart appends a part to the assistant message with the
// given id, creating the message if this is its first part. Must be called
// with the mutex held.
func (m *Manager) appendAssistantPart(messageID string, p timeline.Part) {
	for i := range m.raw {
		if m.raw[i].ID == messageID && m.raw[i].Role == timeline.RoleAssistant {
			m.raw[i].Parts = append(m.raw[i].Parts, p)
			return
		}
	}
	m.raw = append(m.raw, timeline.NewAssistantMessage(messageID, p))
}

// reconcileLocked rebuilds the reconciled timeline from the raw history.
// Must be called with the mutex held.
func (m *Manager) reconcileLocked() {
	m.reconciled = timeline.Reconcile(m.raw)
}

// notifyTimeline delivers the current reconciled timeline to the caller.
func (m *Manager) notifyTimeline() {
	if m.cb.OnTimelineChanged == nil {
		return
	}
	m.cb.OnTimelineChanged(m.Timeline())
}

// setStatus transitions the status and notifies the caller.
func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	if s != StatusError {
		m.lastErr = nil
	}
	m.mu.Unlock()
	if changed && m.cb.OnStatusChanged != nil {
		m.cb.OnStatusChanged(s)
	}
}

// setError records an error and moves the session to the error status.
func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.lastErr = err
	changed := m.status != StatusError
	m.status = StatusError
	m.mu.Unlock()
	m.log.Error("session error", "error", err)
	if changed && m.cb.OnStatusChanged != nil {
		m.cb.OnStatusChanged(StatusError)
	}
}
