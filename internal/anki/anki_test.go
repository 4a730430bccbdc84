package anki

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockAnkiServer simulates AnkiConnect: the handler receives the decoded
// action and params and returns (result, apiError).
func mockAnkiServer(t *testing.T, handler func(action string, params map[string]any) (any, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action  string         `json:"action"`
			Params  map[string]any `json:"params"`
			Version int            `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Version != 6 {
			t.Errorf("expected API version 6, got %d", req.Version)
		}

		result, apiErr := handler(req.Action, req.Params)
		resp := map[string]any{"result": result, "error": nil}
		if apiErr != "" {
			resp["error"] = apiErr
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_FindNotes(t *testing.T) {
	server := mockAnkiServer(t, func(action string, params map[string]any) (any, string) {
		if action != "findNotes" {
			t.Errorf("unexpected action %q", action)
		}
		if params["query"] != `deck:"Core Vocab"` {
			t.Errorf("unexpected query %v", params["query"])
		}
		return []int64{3, 1, 2}, ""
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	ids, err := client.FindNotes(t.Context(), DeckQuery("Core Vocab"))
	if err != nil {
		t.Fatalf("FindNotes failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 ids, got %v", ids)
	}

	t.Run("empty query rejected", func(t *testing.T) {
		if _, err := client.FindNotes(t.Context(), ""); err == nil {
			t.Error("expected error for empty query")
		}
	})
}

func TestClient_NotesInfo(t *testing.T) {
	server := mockAnkiServer(t, func(action string, params map[string]any) (any, string) {
		return []map[string]any{
			{
				"noteId": 42,
				"fields": map[string]any{
					"Front": map[string]any{"value": "犬", "order": 0},
					"Back":  map[string]any{"value": "dog", "order": 1},
				},
			},
		}, ""
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	notes, err := client.NotesInfo(t.Context(), []int64{42})
	if err != nil {
		t.Fatalf("NotesInfo failed: %v", err)
	}
	if len(notes) != 1 || notes[0].NoteID != 42 {
		t.Fatalf("unexpected notes: %+v", notes)
	}

	fields := notes[0].FieldValues()
	if fields["Front"] != "犬" || fields["Back"] != "dog" {
		t.Errorf("unexpected field values: %v", fields)
	}

	t.Run("empty batch is a no-op", func(t *testing.T) {
		notes, err := client.NotesInfo(t.Context(), nil)
		if err != nil || notes != nil {
			t.Errorf("expected nil, nil for empty batch, got %v, %v", notes, err)
		}
	})
}

func TestClient_UpdateFields(t *testing.T) {
	var gotParams map[string]any
	server := mockAnkiServer(t, func(action string, params map[string]any) (any, string) {
		gotParams = params
		return nil, ""
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	err := client.UpdateFields(t.Context(), 42, map[string]string{"Back": "hound"})
	if err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}

	note := gotParams["note"].(map[string]any)
	if note["id"].(float64) != 42 {
		t.Errorf("unexpected note id %v", note["id"])
	}

	t.Run("invalid id rejected", func(t *testing.T) {
		if err := client.UpdateFields(t.Context(), 0, nil); err == nil {
			t.Error("expected error for id 0")
		}
	})
}

func TestClient_APIError(t *testing.T) {
	server := mockAnkiServer(t, func(action string, params map[string]any) (any, string) {
		return nil, "collection is not available"
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.FindNotes(t.Context(), "deck:x")
	if err == nil {
		t.Fatal("expected error")
	}

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectError, got %T", err)
	}
	if !connErr.Busy() {
		t.Error("expected Busy() for collection-not-available error")
	}
}

func TestClient_Connected(t *testing.T) {
	server := mockAnkiServer(t, func(action string, params map[string]any) (any, string) {
		return 6, ""
	})
	client := New(server.URL, 5*time.Second)
	if !client.Connected(t.Context()) {
		t.Error("expected Connected to be true")
	}

	server.Close()
	if client.Connected(t.Context()) {
		t.Error("expected Connected to be false after server close")
	}
}

func TestDeckQuery(t *testing.T) {
	got := DeckQuery(`My "Best" Deck`)
	want := `deck:"My \"Best\" Deck"`
	if got != want {
		t.Errorf("DeckQuery = %s, want %s", got, want)
	}
}
