package timeline

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessage_JSONTaggedParts(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewAssistantMessage("a1",
		TextPart{Text: "ok"},
		MarkerPart{ID: "m1", Content: "more", Timestamp: ts},
	)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %+v", decoded.Parts)
	}
	if tp, ok := decoded.Parts[0].(TextPart); !ok || tp.Text != "ok" {
		t.Errorf("part 0: got %+v", decoded.Parts[0])
	}
	mp, ok := decoded.Parts[1].(MarkerPart)
	if !ok || mp.ID != "m1" || mp.Content != "more" || !mp.Timestamp.Equal(ts) {
		t.Errorf("part 1: got %+v", decoded.Parts[1])
	}
}

func TestMessage_UnmarshalRejectsUnknownKind(t *testing.T) {
	data := []byte(`{"id":"a1","role":"assistant","parts":[{"kind":"bogus"}]}`)
	var msg Message
	if err := json.Unmarshal(data, &msg); err == nil {
		t.Error("expected error for unknown part kind")
	}
}

func TestMessage_TextIgnoresMarkers(t *testing.T) {
	msg := NewAssistantMessage("a1",
		TextPart{Text: "one "},
		MarkerPart{ID: "m1", Content: "hidden"},
		TextPart{Text: "two"},
	)
	if got := msg.Text(); got != "one two" {
		t.Errorf("Text() = %q, want %q", got, "one two")
	}
}
