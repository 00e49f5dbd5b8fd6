package ipc

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// Commands understood by the listen owner.
const (
	CommandStatus  = "status"
	CommandPoll    = "poll"
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandRestart = "restart"
)

// Request is one command line sent by an engine or CLI client.
type Request struct {
	Command string `json:"command"`
	// Limit caps the events returned by poll. Zero drains the queue.
	Limit int `json:"limit,omitempty"`
}

type Response struct {
	OK         bool    `json:"ok"`
	State      string  `json:"state,omitempty"`
	Generation uint64  `json:"generation,omitempty"`
	QueueDepth int     `json:"queue_depth,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
	Events     []Event `json:"events,omitempty"`
}

// Event is one queued recognizer notification as seen by the engine.
type Event struct {
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Code       int       `json:"code,omitempty"`
	CodeName   string    `json:"code_name,omitempty"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}

// writeMessage encodes v as a single JSON line.
func writeMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// readLine returns the next newline-terminated message.
func readLine(r io.Reader) ([]byte, error) {
	return bufio.NewReader(r).ReadBytes('\n')
}
