// Package message defines the pastemill control protocol spoken over the
// local IPC socket. All messages are newline-delimited JSON; each message is
// exactly one line: <json>\n
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeError          Type = "ERROR"
)

// ModuleState describes one registered handler module.
type ModuleState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Loaded  bool   `json:"loaded"`
	Failed  bool   `json:"failed"`
}

// ObserverStats mirrors the observer's counters for status output.
type ObserverStats struct {
	Ticks       int64 `json:"ticks"`
	Changes     int64 `json:"changes"`
	Dispatches  int64 `json:"dispatches"`
	Errors      int64 `json:"errors"`
	PausedTicks int64 `json:"paused_ticks"`
}

// HistoryInfo summarises the history store, when one is attached.
type HistoryInfo struct {
	Entries int64  `json:"entries"`
	Path    string `json:"path"`
}

// StatusInfo is the daemon's self-description, used in STATUS_RESPONSE.
type StatusInfo struct {
	Version   string        `json:"version"`
	Session   string        `json:"session"`
	PID       int           `json:"pid"`
	StartedAt time.Time     `json:"started_at"`
	Backend   string        `json:"backend"`
	Mode      string        `json:"mode"`
	Paused    bool          `json:"paused"`
	Observer  ObserverStats `json:"observer"`
	Modules   []ModuleState `json:"modules"`
	History   *HistoryInfo  `json:"history,omitempty"`
}

// Message is the top-level wire envelope.
type Message struct {
	Type Type `json:"type"`

	// STATUS_RESPONSE
	Status *StatusInfo `json:"status,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}
