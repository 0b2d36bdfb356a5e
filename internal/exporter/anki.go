// Package exporter pushes the currently playing moment into the most
// recently created Anki note: a screenshot and an audio clip cut by
// external tools, then a field update over AnkiConnect.
package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ExportError is a user-actionable export failure, shown on the player OSD.
type ExportError struct {
	Message string
}

func (e *ExportError) Error() string { return e.Message }

func exportErrorf(format string, args ...any) *ExportError {
	return &ExportError{Message: fmt.Sprintf(format, args...)}
}

// AnkiClient speaks the AnkiConnect JSON envelope: requests carry
// {action, version, params}, responses {result, error}. All failure modes
// (unreachable, malformed response, explicit API error) surface as
// *ExportError with distinct messages.
type AnkiClient struct {
	url    string
	client *http.Client
}

func NewAnkiClient(url string) *AnkiClient {
	return &AnkiClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *AnkiClient) invoke(action string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"action":  action,
		"version": 6,
		"params":  params,
	})
	if err != nil {
		return nil, exportErrorf("Invalid AnkiConnect request for %s.", action)
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &ExportError{Message: "Could not connect to Anki.\nMake sure Anki is running and the latest AnkiConnect add-on is installed."}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ExportError{Message: "Could not connect to Anki.\nMake sure Anki is running and the latest AnkiConnect add-on is installed."}
	}

	// The envelope must contain exactly the result and error keys.
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &ExportError{Message: "Invalid response from AnkiConnect."}
	}
	result, hasResult := envelope["result"]
	apiErr, hasErr := envelope["error"]
	if len(envelope) != 2 || !hasResult || !hasErr {
		return nil, &ExportError{Message: "Invalid response from AnkiConnect."}
	}
	if string(apiErr) != "null" {
		var msg string
		if err := json.Unmarshal(apiErr, &msg); err != nil {
			return nil, &ExportError{Message: "Invalid response from AnkiConnect."}
		}
		return nil, &ExportError{Message: msg}
	}
	return result, nil
}

// LastAddedNotes returns the ids of notes created today, newest first.
func (c *AnkiClient) LastAddedNotes() ([]int64, error) {
	result, err := c.invoke("findNotes", map[string]string{"query": "added:1"})
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(result, &ids); err != nil {
		return nil, &ExportError{Message: "Invalid response from AnkiConnect."}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// MediaDirPath returns Anki's media collection directory.
func (c *AnkiClient) MediaDirPath() (string, error) {
	result, err := c.invoke("getMediaDirPath", map[string]string{})
	if err != nil {
		return "", err
	}
	var dir string
	if err := json.Unmarshal(result, &dir); err != nil {
		return "", &ExportError{Message: "Invalid response from AnkiConnect."}
	}
	return dir, nil
}

// UpdateNoteFields writes the given fields to the note.
func (c *AnkiClient) UpdateNoteFields(noteID int64, fields map[string]string) error {
	_, err := c.invoke("updateNoteFields", map[string]any{
		"note": map[string]any{
			"id":     noteID,
			"fields": fields,
		},
	})
	return err
}

// GuiBrowse points the Anki browser at the given query.
func (c *AnkiClient) GuiBrowse(query string) error {
	_, err := c.invoke("guiBrowse", map[string]string{"query": query})
	return err
}
