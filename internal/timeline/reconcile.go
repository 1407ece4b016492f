package timeline

import "fmt"

// Reconcile merges the raw message sequence into an ordered, deduplicated
// transcript that is safe to render directly.
//
// The raw sequence interleaves optimistic locally-created user messages
// with remote assistant messages whose parts may embed user-message
// markers. Reconcile splices each marker-derived user message into the
// transcript at the exact point it occurred in the stream, preserving the
// relative order of the assistant content around it.
//
// Reconcile is a pure function of its input: the seen-id and seen-content
// sets are rebuilt from the full raw sequence on every call, so repeated
// passes over a growing (append-only) raw sequence are idempotent for
// already-resolved segments.
func Reconcile(raw []Message) []Message {
	seenIDs := make(map[string]struct{})
	seenContent := make(map[string]struct{})
	for _, m := range raw {
		if m.Role == RoleUser {
			seenIDs[m.ID] = struct{}{}
			seenContent[m.Text()] = struct{}{}
		}
	}

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		if m.Role != RoleAssistant {
			// Optimistic user messages pass through unchanged.
			out = append(out, m)
			continue
		}
		out = append(out, splitAssistant(m, seenIDs, seenContent)...)
	}
	return out
}

// splitAssistant walks an assistant message's parts in arrival order,
// flushing buffered assistant content around each embedded marker and
// synthesizing user messages for markers not already seen.
func splitAssistant(m Message, seenIDs, seenContent map[string]struct{}) []Message {
	markers := 0
	for _, p := range m.Parts {
		if _, ok := p.(MarkerPart); ok {
			markers++
		}
	}
	if markers == 0 {
		// No split needed; the message keeps its original identity.
		return []Message{m}
	}

	var out []Message
	var buf []Part
	seg := 0
	flush := func() {
		if len(buf) == 0 {
			return
		}
		out = append(out, Message{
			// Split segments get a positional suffix so each piece
			// remains individually addressable.
			ID:    fmt.Sprintf("%s-seg%d", m.ID, seg),
			Role:  RoleAssistant,
			Parts: buf,
		})
		buf = nil
		seg++
	}

	for _, p := range m.Parts {
		marker, ok := p.(MarkerPart)
		if !ok {
			buf = append(buf, p)
			continue
		}
		flush()
		if _, dup := seenIDs[marker.ID]; dup {
			continue
		}
		if _, dup := seenContent[marker.Content]; dup {
			// Matches an optimistic send or an earlier marker.
			continue
		}
		out = append(out, NewUserMessage(marker.ID, marker.Content))
		seenIDs[marker.ID] = struct{}{}
		seenContent[marker.Content] = struct{}{}
	}
	flush()
	return out
}
