package session

import (
	"context"
	"fmt"
)

// SendOption configures a single send.
type SendOption func(*sendOptions)

type sendOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey sets an explicit dedup key for a follow-up send.
// Repeating a key that is in flight or already consumed makes the send a
// silent no-op; this is the at-most-once guard for retried user actions.
// Without a key, each call is a distinct logical send keyed by a monotonic
// per-run counter.
func WithIdempotencyKey(key string) SendOption {
	return func(o *sendOptions) {
		o.idempotencyKey = key
	}
}

// sendFollowUp dispatches a continuation message to runID with at-most-once
// delivery per logical send. The dedup token is marked in flight before the
// request, released on rejection (allowing retry), and left consumed for
// the lifetime of the session on success.
func (m *Manager) sendFollowUp(ctx context.Context, runID, text string, opts ...SendOption) error {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	token := o.idempotencyKey
	if token == "" {
		m.followSeq++
		token = fmt.Sprintf("%s#%d", runID, m.followSeq)
	}
	if _, busy := m.inflight[token]; busy {
		m.mu.Unlock()
		m.log.Debug("duplicate follow-up suppressed", "run_id", runID, "token", token)
		return nil
	}
	if _, done := m.consumed[token]; done {
		m.mu.Unlock()
		m.log.Debug("already-delivered follow-up suppressed", "run_id", runID, "token", token)
		return nil
	}
	m.inflight[token] = struct{}{}
	m.mu.Unlock()

	err := m.adapter.SendFollowUp(ctx, runID, text)

	m.mu.Lock()
	delete(m.inflight, token)
	if err == nil {
		m.consumed[token] = struct{}{}
	}
	m.mu.Unlock()

	if err != nil {
		rejected := newFollowUpRejected(err)
		m.setError(rejected)
		return rejected
	}

	m.setStatus(StatusStreaming)
	m.log.Debug("follow-up delivered", "run_id", runID, "token", token)
	return nil
}
