// Package cliutil renders session events for terminal and machine output.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mlegge/hatchd/internal/events"
)

// LogRecord represents a structured session event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Session   string    `json:"session"`
	Process   string    `json:"process,omitempty"`
	Event     string    `json:"event"`
	State     string    `json:"state,omitempty"`
	Port      string    `json:"port,omitempty"`
	Message   string    `json:"msg,omitempty"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts a session event into a structured log record.
func NewLogRecord(evt events.Event) LogRecord {
	record := LogRecord{
		Timestamp: evt.Timestamp,
		Session:   evt.Session,
		Process:   string(evt.Process),
		Event:     string(evt.Type),
		Port:      evt.Port,
		Message:   evt.Message,
		Source:    evt.Source,
	}
	if evt.Type == events.EventTypeStatus {
		record.State = evt.State.String()
	}
	if evt.Err != nil {
		record.Error = evt.Err.Error()
	}
	return record
}

// EncodeEvent encodes an event to JSON, reporting errors to stderr if needed.
func EncodeEvent(enc *json.Encoder, stderr io.Writer, evt events.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(evt)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode event: %v\n", err)
	}
}

// FormatEvent renders an event as a human-readable line for TTY output.
func FormatEvent(evt events.Event) string {
	switch evt.Type {
	case events.EventTypeStatus:
		return fmt.Sprintf("%s %-8s %s", evt.Timestamp.Format(time.TimeOnly), evt.Process, evt.State)
	case events.EventTypePort:
		return fmt.Sprintf("%s %-8s app port %s", evt.Timestamp.Format(time.TimeOnly), evt.Process, evt.Port)
	case events.EventTypeError:
		return fmt.Sprintf("%s %-8s error: %v", evt.Timestamp.Format(time.TimeOnly), evt.Process, evt.Err)
	case events.EventTypeKeystoreExited, events.EventTypeRuntimeExited:
		return fmt.Sprintf("%s %-8s exited", evt.Timestamp.Format(time.TimeOnly), evt.Process)
	default:
		return fmt.Sprintf("%s %-8s %s", evt.Timestamp.Format(time.TimeOnly), evt.Process, evt.Type)
	}
}
