// Package api defines the read-only status surface exposed over HTTP.
package api

import "time"

// ProcessStatus summarizes one supervised process.
type ProcessStatus struct {
	Running   bool      `json:"running"`
	LastEvent time.Time `json:"lastEvent,omitzero"`
}

// SessionStatus is a point-in-time snapshot of the supervised session.
type SessionStatus struct {
	Session   string        `json:"session"`
	Ready     bool          `json:"ready"`
	State     string        `json:"state,omitempty"`
	Port      string        `json:"port,omitempty"`
	Keystore  ProcessStatus `json:"keystore"`
	Runtime   ProcessStatus `json:"runtime"`
	Errors    int           `json:"errors"`
	UpdatedAt time.Time     `json:"updatedAt,omitzero"`
}

// Controller exposes session state to the HTTP server.
type Controller interface {
	Status() SessionStatus
}
