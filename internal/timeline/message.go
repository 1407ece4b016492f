// Package timeline defines the conversation data model and the
// reconciliation that merges optimistic local messages with user messages
// embedded in the remote stream into one ordered transcript.
package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MarkerKind is the wire tag for user-message marker parts. A marker
// represents a user message that arrived through the stream itself (sent
// via a side channel) rather than through the normal send path.
const MarkerKind = "user-message-marker"

// TextKind is the wire tag for plain text parts.
const TextKind = "text"

// Part is one unit of message content: either text or a user-message marker.
type Part interface {
	isPart()
}

// TextPart is a segment of message text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// MarkerPart signals that the user sent a message through the stream while
// the assistant was responding. It carries the full user message so the
// reconciler can fold it into the transcript at the point it occurred.
type MarkerPart struct {
	ID        string
	Content   string
	Timestamp time.Time
}

func (MarkerPart) isPart() {}

// Message is a single conversational turn. Identity is ID; uniqueness must
// hold across the whole reconciled transcript.
type Message struct {
	ID    string
	Role  Role
	Parts []Part
}

// NewUserMessage builds a user message with a single text part.
func NewUserMessage(id, text string) Message {
	return Message{ID: id, Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage builds an assistant message from the given parts.
func NewAssistantMessage(id string, parts ...Part) Message {
	return Message{ID: id, Role: RoleAssistant, Parts: parts}
}

// Text returns the concatenated text content of the message, ignoring
// marker parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// partEnvelope is the JSON form of a Part, discriminated by Kind.
type partEnvelope struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// messageEnvelope is the JSON form of a Message.
type messageEnvelope struct {
	ID    string         `json:"id"`
	Role  Role           `json:"role"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON encodes the message with tagged parts.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{ID: m.ID, Role: m.Role, Parts: make([]partEnvelope, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch pt := p.(type) {
		case TextPart:
			env.Parts = append(env.Parts, partEnvelope{Kind: TextKind, Text: pt.Text})
		case MarkerPart:
			env.Parts = append(env.Parts, partEnvelope{
				Kind:      MarkerKind,
				ID:        pt.ID,
				Content:   pt.Content,
				Timestamp: pt.Timestamp,
			})
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a message with tagged parts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	m.ID = env.ID
	m.Role = env.Role
	m.Parts = nil
	for _, pe := range env.Parts {
		switch pe.Kind {
		case TextKind:
			m.Parts = append(m.Parts, TextPart{Text: pe.Text})
		case MarkerKind:
			m.Parts = append(m.Parts, MarkerPart{ID: pe.ID, Content: pe.Content, Timestamp: pe.Timestamp})
		default:
			return fmt.Errorf("unknown part kind %q", pe.Kind)
		}
	}
	return nil
}
