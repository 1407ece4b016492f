package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClient_SendFollowUp_Success(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/runs/r1" {
			t.Errorf("path = %s, want /runs/r1", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.SendFollowUp(context.Background(), "r1", "continue"); err != nil {
		t.Fatalf("SendFollowUp failed: %v", err)
	}
	if gotBody["message"] != "continue" {
		t.Errorf("body = %+v, want message=continue", gotBody)
	}
}

func TestClient_SendFollowUp_RejectionCarriesDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"details": "run is busy"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.SendFollowUp(context.Background(), "r1", "continue")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusConflict || se.Details != "run is busy" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestClient_SendFollowUp_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	var se *StatusError
	if err := c.SendFollowUp(context.Background(), "r1", "x"); !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Details == "" {
		t.Error("expected raw body as details fallback")
	}
}

func TestClient_EndRun_SendsTerminationMessage(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.EndRun(context.Background(), "r1"); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}
	if gotBody["message"] != TerminationMessage {
		t.Errorf("termination body = %+v, want message=%s", gotBody, TerminationMessage)
	}
}

// streamServer upgrades /runs/{id}/stream and serves the given frames,
// answering the start POST with a run id header.
func streamServer(t *testing.T, runID string, frames []map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RunIDHeader, runID)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/runs/"+runID+"/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(mux)
}

func TestClient_StartStreamsEvents(t *testing.T) {
	frames := []map[string]any{
		{"type": "message_start", "data": map[string]any{"run_id": "r42"}},
		{"type": "text", "data": map[string]any{"message_id": "a1", "text": "hel"}},
		{"type": "text", "data": map[string]any{"message_id": "a1", "text": "lo"}},
		{"type": "user_marker", "data": map[string]any{
			"message_id": "a1", "id": "m1", "content": "wait", "timestamp": time.Now().UTC(),
		}},
		{"type": "run_end", "data": map[string]any{}},
	}
	srv := streamServer(t, "r42", frames)
	defer srv.Close()

	var mu sync.Mutex
	var texts []string
	var markerID, startedID string
	ended := make(chan struct{})

	c := New(srv.URL)
	stream, err := c.Start(context.Background(), StartRequest{Message: "hi"}, Handlers{
		OnStarted: func(runID string) {
			mu.Lock()
			startedID = runID
			mu.Unlock()
		},
		OnTextPart: func(messageID, text string) {
			mu.Lock()
			texts = append(texts, text)
			mu.Unlock()
		},
		OnMarker: func(messageID, id, content string, ts time.Time) {
			mu.Lock()
			markerID = id
			mu.Unlock()
		},
		OnRunEnded: func() { close(ended) },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stream.Close()

	if stream.RunID() != "r42" {
		t.Errorf("RunID = %q, want r42", stream.RunID())
	}

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run_end")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 || texts[0] != "hel" || texts[1] != "lo" {
		t.Errorf("texts = %v", texts)
	}
	if markerID != "m1" {
		t.Errorf("markerID = %q, want m1", markerID)
	}
	if startedID != "r42" {
		t.Errorf("startedID = %q, want r42", startedID)
	}
}

func TestClient_Reconnect(t *testing.T) {
	frames := []map[string]any{
		{"type": "text", "data": map[string]any{"message_id": "a1", "text": "resumed"}},
	}
	srv := streamServer(t, "r42", frames)
	defer srv.Close()

	got := make(chan string, 1)
	c := New(srv.URL)
	stream, err := c.Reconnect(context.Background(), "r42", Handlers{
		OnTextPart: func(messageID, text string) { got <- text },
	})
	if err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}
	defer stream.Close()

	select {
	case text := <-got:
		if text != "resumed" {
			t.Errorf("text = %q, want resumed", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream event")
	}
}

func TestClient_StartRunIDFromBody(t *testing.T) {
	mux := http.NewServeMux()
	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		// No header: the id comes back in the JSON body instead.
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-body"})
	})
	mux.HandleFunc("/runs/r-body/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	stream, err := c.Start(context.Background(), StartRequest{Message: "hi"}, Handlers{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stream.Close()
	if stream.RunID() != "r-body" {
		t.Errorf("RunID = %q, want r-body", stream.RunID())
	}
}
