package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestADKClient(ts *httptest.Server) *ADKClient {
	c := NewADKClient(ts.URL, "workshop_matchmaker", "user_1", "session_1")
	c.HTTPClient = ts.Client()
	return c
}

func TestADKClientCreateSession(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"session_1"}`))
	}))
	defer ts.Close()

	c := newTestADKClient(ts)
	if err := c.CreateSession(context.Background()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	want := "/apps/workshop_matchmaker/users/user_1/sessions/session_1"
	if gotPath != want {
		t.Errorf("expected path %q, got %q", want, gotPath)
	}
}

func TestADKClientRun(t *testing.T) {
	events := []Event{
		TextEvent(`{"groups":[{"group":["Alice","Bob"],"description":"Shared AI interest"}]}`),
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode run request: %v", err)
		}
		if req.AppName != "workshop_matchmaker" || req.UserID != "user_1" || req.SessionID != "session_1" {
			t.Errorf("unexpected run request identity: %+v", req)
		}
		if req.NewMessage.Role != "user" || len(req.NewMessage.Parts) != 1 {
			t.Errorf("unexpected new_message: %+v", req.NewMessage)
		}
		if req.NewMessage.Parts[0].Text != "Group the attendees" {
			t.Errorf("unexpected message text %q", req.NewMessage.Parts[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}))
	defer ts.Close()

	c := newTestADKClient(ts)
	got, err := c.Invoke(context.Background(), "ignored instruction", "Group the attendees")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Content.Parts[0].Text != events[0].Content.Parts[0].Text {
		t.Errorf("unexpected event payload: %+v", got[0])
	}
}

func TestADKClientRunNoSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestADKClient(ts)
	_, err := c.Run(context.Background(), "Group the attendees")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestADKClientRunServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newTestADKClient(ts)
	_, err := c.Run(context.Background(), "Group the attendees")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrNoSession) {
		t.Error("500 must not be reported as a missing session")
	}
}
