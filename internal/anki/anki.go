// Package anki is a thin client for the AnkiConnect addon RPC API.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ConnectError is returned for any AnkiConnect transport or API failure.
type ConnectError struct {
	Action string
	Msg    string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("anki %s: %s: %v", e.Action, e.Msg, e.Err)
	}
	return fmt.Sprintf("anki %s: %s", e.Action, e.Msg)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Busy reports whether the failure was Anki's "collection is not available"
// condition, which clears once the user closes the open dialog.
func (e *ConnectError) Busy() bool {
	return strings.Contains(e.Msg, "collection is not available")
}

// Note is one note as returned by the notesInfo action.
type Note struct {
	NoteID int64                `json:"noteId"`
	Fields map[string]NoteField `json:"fields"`
}

// NoteField is a single field's value and display order.
type NoteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// FieldValues flattens the note's fields to a name-to-string map.
func (n *Note) FieldValues() map[string]string {
	fields := make(map[string]string, len(n.Fields))
	for name, f := range n.Fields {
		fields[name] = f.Value
	}
	return fields
}

// Client talks to a running AnkiConnect instance.
type Client struct {
	url    string
	client *http.Client
}

// New creates a client for the AnkiConnect endpoint at url. timeout applies
// per call.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	Action  string `json:"action"`
	Params  any    `json:"params"`
	Version int    `json:"version"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect RPC and decodes the result into out.
func (c *Client) invoke(ctx context.Context, action string, params any, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{Action: action, Params: params, Version: 6})
	if err != nil {
		return &ConnectError{Action: action, Msg: "failed to serialize params", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &ConnectError{Action: action, Msg: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &ConnectError{Action: action, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectError{Action: action, Msg: "failed to read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &ConnectError{Action: action, Msg: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, respBody)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &ConnectError{Action: action, Msg: "failed to decode response", Err: err}
	}
	if rpcResp.Error != nil {
		return &ConnectError{Action: action, Msg: *rpcResp.Error}
	}
	if rpcResp.Result == nil {
		return &ConnectError{Action: action, Msg: "response missing result"}
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &ConnectError{Action: action, Msg: "unexpected result shape", Err: err}
		}
	}
	return nil
}

// Version returns the AnkiConnect API version.
func (c *Client) Version(ctx context.Context) (int, error) {
	var version int
	if err := c.invoke(ctx, "version", nil, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// Connected reports whether AnkiConnect is reachable.
func (c *Client) Connected(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// DeckNames returns all deck names in the collection.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// FindNotes returns the note IDs matching an Anki search query.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	if query == "" {
		return nil, &ConnectError{Action: "findNotes", Msg: "query cannot be empty"}
	}
	var ids []int64
	if err := c.invoke(ctx, "findNotes", map[string]any{"query": query}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// NotesInfo fetches full note data for a batch of IDs.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var notes []Note
	if err := c.invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// UpdateFields overwrites the given fields on one note.
func (c *Client) UpdateFields(ctx context.Context, id int64, fields map[string]string) error {
	if id <= 0 {
		return &ConnectError{Action: "updateNoteFields", Msg: fmt.Sprintf("invalid note id %d", id)}
	}
	params := map[string]any{
		"note": map[string]any{"id": id, "fields": fields},
	}
	return c.invoke(ctx, "updateNoteFields", params, nil)
}

// DeckQuery builds a findNotes query matching every note in a deck, with the
// deck name quoted for Anki's search syntax.
func DeckQuery(deck string) string {
	escaped := strings.ReplaceAll(deck, `"`, `\"`)
	return `deck:"` + escaped + `"`
}
