package timeline

import (
	"reflect"
	"testing"
)

func TestReconcile_NoMarkersIsIdentity(t *testing.T) {
	raw := []Message{
		NewUserMessage("u1", "hi"),
		NewAssistantMessage("a1", TextPart{Text: "hello "}, TextPart{Text: "there"}),
		NewUserMessage("u2", "thanks"),
	}

	got := Reconcile(raw)
	if !reflect.DeepEqual(got, raw) {
		t.Errorf("expected identity for marker-free input, got %+v", got)
	}
}

func TestReconcile_SingleUserMessage(t *testing.T) {
	raw := []Message{NewUserMessage("u1", "hi")}
	got := Reconcile(raw)
	if len(got) != 1 || got[0].ID != "u1" || got[0].Text() != "hi" {
		t.Fatalf("expected [user:hi] unchanged, got %+v", got)
	}
}

func TestReconcile_MarkerSplicedBetweenAssistantContent(t *testing.T) {
	raw := []Message{
		NewAssistantMessage("a1",
			TextPart{Text: "ok"},
			MarkerPart{ID: "m1", Content: "more please"},
			TextPart{Text: "sure"},
		),
	}

	got := Reconcile(raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(got), got)
	}
	if got[0].Role != RoleAssistant || got[0].Text() != "ok" {
		t.Errorf("segment before marker: got %+v", got[0])
	}
	if got[1].Role != RoleUser || got[1].ID != "m1" || got[1].Text() != "more please" {
		t.Errorf("synthesized user message: got %+v", got[1])
	}
	if got[2].Role != RoleAssistant || got[2].Text() != "sure" {
		t.Errorf("segment after marker: got %+v", got[2])
	}
	if got[0].ID == got[2].ID {
		t.Errorf("split segments must be individually addressable, both have id %q", got[0].ID)
	}
	for _, m := range got {
		if m.Role == RoleAssistant && m.Text() == "" {
			t.Errorf("empty assistant entry in output: %+v", m)
		}
	}
}

func TestReconcile_AllMarkerMessageProducesNoAssistantEntry(t *testing.T) {
	raw := []Message{
		NewAssistantMessage("a1",
			MarkerPart{ID: "m1", Content: "first"},
			MarkerPart{ID: "m2", Content: "second"},
		),
	}

	got := Reconcile(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 synthesized user messages, got %+v", got)
	}
	for i, want := range []struct{ id, text string }{{"m1", "first"}, {"m2", "second"}} {
		if got[i].Role != RoleUser || got[i].ID != want.id || got[i].Text() != want.text {
			t.Errorf("message %d: got %+v, want user %s %q", i, got[i], want.id, want.text)
		}
	}
}

func TestReconcile_MarkerDuplicatingOptimisticContentIsDropped(t *testing.T) {
	raw := []Message{
		NewUserMessage("u1", "hello"),
		NewAssistantMessage("a1",
			TextPart{Text: "hi"},
			// Different id, identical content to the optimistic send.
			MarkerPart{ID: "m-other", Content: "hello"},
			TextPart{Text: "again"},
		),
	}

	got := Reconcile(raw)
	for _, m := range got {
		if m.ID == "m-other" {
			t.Fatalf("marker duplicating optimistic content must be dropped, got %+v", got)
		}
	}
	// The assistant content still splits at the marker position, once.
	if len(got) != 3 {
		t.Fatalf("expected [user, assistant, assistant], got %+v", got)
	}
	if got[1].Text() != "hi" || got[2].Text() != "again" {
		t.Errorf("assistant segments reordered or double-flushed: %+v", got)
	}
}

func TestReconcile_MarkerDuplicatingIDIsDropped(t *testing.T) {
	raw := []Message{
		NewUserMessage("u1", "hello"),
		NewAssistantMessage("a1",
			MarkerPart{ID: "u1", Content: "something else"},
			TextPart{Text: "reply"},
		),
	}

	got := Reconcile(raw)
	ids := make(map[string]int)
	for _, m := range got {
		ids[m.ID]++
	}
	if ids["u1"] != 1 {
		t.Errorf("message id u1 must appear exactly once, got %d in %+v", ids["u1"], got)
	}
}

func TestReconcile_RepeatedMarkerAcrossMessagesEmittedOnce(t *testing.T) {
	raw := []Message{
		NewAssistantMessage("a1",
			TextPart{Text: "one"},
			MarkerPart{ID: "m1", Content: "interject"},
		),
		NewAssistantMessage("a2",
			MarkerPart{ID: "m1", Content: "interject"},
			TextPart{Text: "two"},
		),
	}

	got := Reconcile(raw)
	count := 0
	for _, m := range got {
		if m.ID == "m1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("marker m1 emitted %d times, want 1: %+v", count, got)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	raw := []Message{
		NewUserMessage("u1", "start"),
		NewAssistantMessage("a1",
			TextPart{Text: "before"},
			MarkerPart{ID: "m1", Content: "mid-stream"},
			TextPart{Text: "after"},
		),
	}

	first := Reconcile(raw)
	second := Reconcile(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reconciling the same raw input twice differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestReconcile_SupersetKeepsResolvedSegmentsStable(t *testing.T) {
	base := []Message{
		NewUserMessage("u1", "start"),
		NewAssistantMessage("a1",
			TextPart{Text: "before"},
			MarkerPart{ID: "m1", Content: "mid-stream"},
		),
	}
	first := Reconcile(base)

	// More chunks arrive: the raw sequence grows, earlier messages untouched.
	grown := append(append([]Message{}, base...),
		NewAssistantMessage("a2", TextPart{Text: "continued"}),
	)
	second := Reconcile(grown)

	if !reflect.DeepEqual(second[:len(first)], first) {
		t.Errorf("already-resolved prefix changed:\nwas: %+v\nnow: %+v", first, second[:len(first)])
	}
}

func TestReconcile_ZeroMarkersKeepsOriginalID(t *testing.T) {
	raw := []Message{NewAssistantMessage("a1", TextPart{Text: "plain"})}
	got := Reconcile(raw)
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("marker-free assistant message must keep its id, got %+v", got)
	}
}
